package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"kgicweb/core/playback"
	"kgicweb/core/siteapi"
	"kgicweb/logger"
	"kgicweb/model"
)

const (
	seekStep   = 5.0 // percent
	volumeStep = 10
	listLimit  = 100
)

type (
	contentLoadedMsg struct {
		route route
		items []list.Item
		err   error
	}
	sessionMsg       playback.Session
	sessionClosedMsg struct{}
	tickMsg          time.Time
	playCountMsg     siteapi.PlayCountUpdate
	actionErrMsg     struct{ err error }
)

func (b *bubble) Init() tea.Cmd {
	return tea.Batch(b.waitForSession(), b.waitForPlayCount(), b.maybeTick())
}

func (b *bubble) waitForSession() tea.Cmd {
	ch := b.sessions
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionMsg(s)
	}
}

func (b *bubble) waitForPlayCount() tea.Cmd {
	if b.plays == nil {
		return nil
	}
	ch := b.plays
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return playCountMsg(u)
	}
}

// maybeTick schedules a one second tick only while the mini player may
// disappear with time alone.
func (b *bubble) maybeTick() tea.Cmd {
	if b.ticking || !b.visibility.NeedsTick(b.route.Path(), b.session, b.now()) {
		return nil
	}
	b.ticking = true
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (b *bubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil

	case sessionMsg:
		b.session = playback.Session(msg)
		if b.session.Advisory != "" {
			b.status = b.session.Advisory
		}
		return b, tea.Batch(b.waitForSession(), b.maybeTick())

	case sessionClosedMsg:
		return b, nil

	case tickMsg:
		b.ticking = false
		return b, b.maybeTick()

	case playCountMsg:
		if b.reporter != nil {
			b.reporter.Reconcile(msg.ID, msg.PlayCount)
		}
		return b, b.waitForPlayCount()

	case contentLoadedMsg:
		b.loading[msg.route] = false
		b.errs[msg.route] = msg.err
		if msg.err != nil {
			return b, nil
		}
		b.loaded[msg.route] = true
		return b, b.lists[msg.route].SetItems(msg.items)

	case actionErrMsg:
		if !errors.Is(msg.err, playback.ErrPlaybackUnsupported) {
			b.status = msg.err.Error()
		}
		return b, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return b, tea.Quit
		}
		// 过滤输入时按键交给列表
		if b.current().FilterState() == list.Filtering {
			break
		}
		if cmd, handled := b.handleKey(msg); handled {
			return b, cmd
		}
	}

	var cmd tea.Cmd
	b.lists[b.route], cmd = b.lists[b.route].Update(msg)
	return b, cmd
}

func (b *bubble) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, b.keymap.quit):
		return tea.Quit, true
	case key.Matches(msg, b.keymap.nextRoute):
		return b.navigate(b.route.next()), true
	case key.Matches(msg, b.keymap.prevRoute):
		return b.navigate(b.route.prev()), true
	case key.Matches(msg, b.keymap.refresh):
		b.loaded[b.route] = b.route == homeRoute
		return b.loadCmd(b.route), true
	case key.Matches(msg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
		return nil, true
	case key.Matches(msg, b.keymap.play):
		return b.activate(), true
	case key.Matches(msg, b.keymap.toggle):
		return b.action(func() error { return b.player.Toggle(b.ctx) }), true
	case key.Matches(msg, b.keymap.seekBack):
		return b.seekBy(-seekStep), true
	case key.Matches(msg, b.keymap.seekForward):
		return b.seekBy(seekStep), true
	case key.Matches(msg, b.keymap.volumeUp):
		v := b.session.Volume + volumeStep
		return b.action(func() error { return b.player.SetVolume(v) }), true
	case key.Matches(msg, b.keymap.volumeDown):
		v := b.session.Volume - volumeStep
		return b.action(func() error { return b.player.SetVolume(v) }), true
	case key.Matches(msg, b.keymap.nextTrack):
		b.player.Next()
		return nil, true
	case key.Matches(msg, b.keymap.prevTrack):
		b.player.Previous()
		return nil, true
	}
	return nil, false
}

// navigate switches page and loads it the first time.
func (b *bubble) navigate(to route) tea.Cmd {
	b.route = to
	b.status = ""
	return tea.Batch(b.loadCmd(to), b.maybeTick())
}

func (b *bubble) seekBy(delta float64) tea.Cmd {
	if b.session.Duration <= 0 {
		return nil
	}
	target := b.session.ProgressPercent() + delta
	return b.action(func() error { return b.player.Seek(target) })
}

func (b *bubble) action(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			logger.Warn("[Listener] 播放操作失败", logger.ErrorField(err))
			return actionErrMsg{err}
		}
		return nil
	}
}

// activate plays the selected podcast, or opens the selected page on home.
func (b *bubble) activate() tea.Cmd {
	item, ok := b.current().SelectedItem().(*listItem)
	if !ok {
		return nil
	}
	switch e := item.internal.(type) {
	case route:
		return b.navigate(e)
	case *model.Podcast:
		track := playback.TrackFromPodcast(e)
		if !b.player.Playable(track) {
			b.status = playback.AdvisoryUnsupported
			return nil
		}
		b.status = ""
		return b.action(func() error { return b.player.Play(b.ctx, track) })
	}
	return nil
}

// loadCmd fetches a page unless it is already loaded or loading.
func (b *bubble) loadCmd(r route) tea.Cmd {
	if b.loaded[r] || b.loading[r] {
		return nil
	}
	b.loading[r] = true

	ctx, catalog := b.ctx, b.catalog
	return func() tea.Msg {
		items, err := b.fetch(ctx, catalog, r)
		if err != nil {
			logger.Warn("[Listener] 加载页面失败", logger.String("route", r.Path()), logger.ErrorField(err))
		}
		return contentLoadedMsg{route: r, items: items, err: err}
	}
}

func toItems[T any](rows []T) []list.Item {
	return lo.Map(rows, func(row T, _ int) list.Item {
		return &listItem{internal: row}
	})
}

func (b *bubble) fetch(ctx context.Context, catalog Catalog, r route) ([]list.Item, error) {
	switch r {
	case podcastsRoute:
		rows, err := catalog.ListPodcasts(ctx, listLimit)
		if err != nil {
			return nil, err
		}
		return lo.Map(rows, func(p *model.Podcast, _ int) list.Item {
			return &listItem{
				internal: p,
				countFor: b.countFor,
				playable: b.player.Playable(playback.TrackFromPodcast(p)),
			}
		}), nil
	case prayersRoute:
		rows, err := catalog.ListPrayers(ctx, listLimit)
		return toItems(rows), err
	case announcementsRoute:
		rows, err := catalog.ListAnnouncements(ctx)
		return toItems(rows), err
	case ministriesRoute:
		rows, err := catalog.ListMinistries(ctx)
		return toItems(rows), err
	case groupsRoute:
		rows, err := catalog.ListGroups(ctx)
		return toItems(rows), err
	case booksRoute:
		rows, err := catalog.ListBooks(ctx, "all", "")
		return toItems(rows), err
	}
	return nil, nil
}

// countFor 列表值加上本地乐观计数
func (b *bubble) countFor(p *model.Podcast) int64 {
	if b.reporter == nil {
		return p.PlayCount
	}
	return b.reporter.Count(p.ID, p.PlayCount)
}
