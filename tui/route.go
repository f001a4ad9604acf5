package tui

// route is one page of the listener, named by its site path.
type route int

const (
	homeRoute route = iota
	podcastsRoute
	prayersRoute
	announcementsRoute
	ministriesRoute
	groupsRoute
	booksRoute
	routeCount
)

var routePaths = [routeCount]string{
	"/", "/podcasts", "/prayers", "/announcements", "/ministries", "/groups", "/books",
}

var routeLabels = [routeCount]string{
	"Home", "Podcasts", "Prayers", "Announcements", "Ministries", "Groups", "Books",
}

func (r route) Path() string { return routePaths[r] }

func (r route) Label() string { return routeLabels[r] }

func (r route) next() route { return (r + 1) % routeCount }

func (r route) prev() route { return (r + routeCount - 1) % routeCount }

var routeBlurbs = [routeCount]string{
	"",
	"Sermons and talks",
	"Daily prayers",
	"News from the church",
	"Ways to serve",
	"Small groups near you",
	"Recommended reading",
}
