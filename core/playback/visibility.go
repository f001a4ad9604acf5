package playback

import (
	"strings"
	"time"
)

// VisibilityPolicy decides whether the mini player is shown on a route.
type VisibilityPolicy struct {
	PodcastsRoute string
	Grace         time.Duration
}

// DefaultVisibility keeps the player for a minute after pause or end.
func DefaultVisibility() VisibilityPolicy {
	return VisibilityPolicy{PodcastsRoute: "/podcasts", Grace: 60 * time.Second}
}

func (p VisibilityPolicy) onPodcasts(route string) bool {
	return route == p.PodcastsRoute || strings.HasPrefix(route, p.PodcastsRoute+"/")
}

func (p VisibilityPolicy) inGrace(s Session, now time.Time) bool {
	return s.HasEverPlayed &&
		s.Transport != Playing &&
		!s.LastPausedAt.IsZero() &&
		now.Sub(s.LastPausedAt) < p.Grace
}

// ShouldShow reports whether the mini player renders on route.
func (p VisibilityPolicy) ShouldShow(route string, s Session, now time.Time) bool {
	if p.onPodcasts(route) || s.Transport == Playing {
		return true
	}
	return p.inGrace(s, now)
}

// NeedsTick reports whether visibility may change with time alone, i.e. the
// grace window is counting down on a route that does not always show the player.
func (p VisibilityPolicy) NeedsTick(route string, s Session, now time.Time) bool {
	return !p.onPodcasts(route) && p.inGrace(s, now)
}
