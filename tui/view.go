package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kgicweb/core/playback"
)

const miniPlayerHeight = 4

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Faint(true)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(accent).Underline(true)
	playerStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	paddingStyle   = lipgloss.NewStyle().Padding(1, 2)
)

func (b *bubble) View() string {
	sections := []string{b.viewTabs(), b.viewBody()}

	if b.visibility.ShouldShow(b.route.Path(), b.session, b.now()) {
		sections = append(sections, b.viewMiniPlayer())
	}
	if b.status != "" {
		sections = append(sections, statusStyle.Render(b.status))
	}
	sections = append(sections, b.helpC.View(b.keymap))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (b *bubble) viewTabs() string {
	tabs := make([]string, 0, routeCount)
	for r := homeRoute; r < routeCount; r++ {
		if r == b.route {
			tabs = append(tabs, activeTabStyle.Render(r.Label()))
		} else {
			tabs = append(tabs, tabStyle.Render(r.Label()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (b *bubble) viewBody() string {
	switch {
	case b.errs[b.route] != nil:
		return paddingStyle.Render(errorStyle.Render("Could not load " + strings.ToLower(b.route.Label()) + ": " + b.errs[b.route].Error()))
	case !b.loaded[b.route]:
		return paddingStyle.Render("Loading " + strings.ToLower(b.route.Label()) + "...")
	}
	return b.current().View()
}

func transportIcon(t playback.Transport) string {
	switch t {
	case playback.Playing:
		return "▶"
	case playback.Paused:
		return "⏸"
	case playback.Ended:
		return "■"
	}
	return "·"
}

// viewMiniPlayer 底部迷你播放器
func (b *bubble) viewMiniPlayer() string {
	s := b.session
	if s.Track == nil {
		return playerStyle.Render(tabStyle.Render("Nothing playing"))
	}

	title := fmt.Sprintf("%s %s · %s", transportIcon(s.Transport), s.Track.Title, s.Track.Artist)
	clock := formatClock(s.Position)
	if s.Duration > 0 {
		clock += " / " + formatClock(s.Duration)
	}
	bar := fmt.Sprintf("%s  %s  vol %d%%", b.progressC.ViewAs(s.ProgressPercent()/100), clock, s.Volume)

	lines := []string{title, bar}
	if s.Advisory != "" {
		lines = append(lines, errorStyle.Render(s.Advisory))
	}
	return playerStyle.Render(strings.Join(lines, "\n"))
}
