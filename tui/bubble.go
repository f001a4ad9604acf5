package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"kgicweb/core/playback"
	"kgicweb/core/siteapi"
	"kgicweb/model"
)

// Player is the playback side driven by the listener.
type Player interface {
	Snapshot() playback.Session
	Subscribe() (<-chan playback.Session, func())
	Play(ctx context.Context, track playback.Track) error
	Toggle(ctx context.Context) error
	Seek(percent float64) error
	SetVolume(percent int) error
	Next()
	Previous()
	Playable(track playback.Track) bool
}

// Catalog loads the content of every page.
type Catalog interface {
	ListPodcasts(ctx context.Context, limit int) ([]*model.Podcast, error)
	ListPrayers(ctx context.Context, limit int) ([]*model.Prayer, error)
	ListAnnouncements(ctx context.Context) ([]*model.Announcement, error)
	ListMinistries(ctx context.Context) ([]*model.Ministry, error)
	ListGroups(ctx context.Context) ([]*model.Group, error)
	ListBooks(ctx context.Context, category, search string) ([]*model.Book, error)
}

// Options 听众界面的运行参数
type Options struct {
	Catalog  Catalog
	Player   Player
	Reporter *playback.Reporter
	// PlayCounts 推送服务端的播放次数，可以为 nil
	PlayCounts <-chan siteapi.PlayCountUpdate
	Visibility playback.VisibilityPolicy
	Now        func() time.Time
}

// bubble is the whole listener state.
type bubble struct {
	ctx        context.Context
	catalog    Catalog
	player     Player
	reporter   *playback.Reporter
	visibility playback.VisibilityPolicy
	now        func() time.Time

	keymap    *keyMap
	route     route
	lists     [routeCount]list.Model
	loaded    [routeCount]bool
	loading   [routeCount]bool
	errs      [routeCount]error
	helpC     help.Model
	progressC progress.Model

	sessions    <-chan playback.Session
	unsubscribe func()
	plays       <-chan siteapi.PlayCountUpdate
	session     playback.Session
	ticking     bool
	status      string

	width, height int
}

var (
	accent     = lipgloss.Color("#7D56F4")
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(accent).Padding(0, 1)
)

func newBubble(ctx context.Context, opts Options) *bubble {
	b := &bubble{
		ctx:        ctx,
		catalog:    opts.Catalog,
		player:     opts.Player,
		reporter:   opts.Reporter,
		visibility: opts.Visibility,
		now:        opts.Now,
		keymap:     newKeyMap(),
		plays:      opts.PlayCounts,
		helpC:      help.New(),
		progressC:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.visibility.PodcastsRoute == "" {
		b.visibility = playback.DefaultVisibility()
	}

	for r := homeRoute; r < routeCount; r++ {
		delegate := list.NewDefaultDelegate()
		delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(accent).BorderForeground(accent)
		delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.BorderForeground(accent)

		l := list.New([]list.Item{}, delegate, 0, 0)
		l.Title = r.Label()
		l.Styles.Title = titleStyle
		l.SetShowHelp(false)
		b.lists[r] = l
	}

	home := make([]list.Item, 0, routeCount-1)
	for r := podcastsRoute; r < routeCount; r++ {
		home = append(home, &listItem{internal: r})
	}
	b.lists[homeRoute].SetItems(home)
	b.loaded[homeRoute] = true

	b.sessions, b.unsubscribe = b.player.Subscribe()
	b.session = b.player.Snapshot()
	return b
}

func (b *bubble) resize(width, height int) {
	b.width, b.height = width, height
	b.helpC.Width = width
	b.progressC.Width = max(width-30, 10)

	listHeight := max(height-miniPlayerHeight-3, 3)
	for r := range b.lists {
		b.lists[r].SetSize(width, listHeight)
	}
}

func (b *bubble) current() *list.Model {
	return &b.lists[b.route]
}
