package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"kgicweb/model"
)

var faint = lipgloss.NewStyle().Faint(true)

// listItem wraps one content row for the bubbles list.
type listItem struct {
	internal interface{}
	// countFor 返回播客应显示的播放次数，为 nil 时使用列表中的值
	countFor func(p *model.Podcast) int64
	// playable 为 false 时提示格式不支持
	playable bool
}

func (t *listItem) FilterValue() string {
	switch e := t.internal.(type) {
	case *model.Podcast:
		return e.Title
	case *model.Prayer:
		return e.Title
	case *model.Announcement:
		return e.Title
	case *model.Ministry:
		return e.Name
	case *model.Group:
		return e.Name
	case *model.Book:
		return e.Title
	case route:
		return e.Label()
	}
	return ""
}

func (t *listItem) Title() string {
	title := t.FilterValue()
	switch e := t.internal.(type) {
	case *model.Podcast:
		if !t.playable {
			title += " " + faint.Render("(unsupported format)")
		}
	case *model.Announcement:
		if e.Pinned {
			title = "📌 " + title
		}
	case *model.Prayer:
		if e.IsFeatured {
			title = "★ " + title
		}
	}
	return title
}

func (t *listItem) Description() string {
	switch e := t.internal.(type) {
	case *model.Podcast:
		parts := []string{lo.FromPtrOr(e.Artist, "KGIC")}
		if e.DurationSeconds != nil {
			parts = append(parts, formatClock(float64(*e.DurationSeconds)))
		}
		count := e.PlayCount
		if t.countFor != nil {
			count = t.countFor(e)
		}
		parts = append(parts, fmt.Sprintf("%d plays", count))
		return strings.Join(parts, " · ")
	case *model.Prayer:
		return lo.FromPtrOr(e.Excerpt, firstLine(e.Content))
	case *model.Announcement:
		return firstLine(lo.FromPtr(e.Body))
	case *model.Ministry:
		return lo.FromPtr(e.ShortDesc)
	case *model.Group:
		return strings.Join(lo.Compact([]string{lo.FromPtr(e.Schedule), lo.FromPtr(e.Location)}), " · ")
	case *model.Book:
		return fmt.Sprintf("%s · %s · ★%.1f", e.Author, e.Category, e.Rating)
	case route:
		return routeBlurbs[e]
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// formatClock 秒数格式化为 m:ss 或 h:mm:ss
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
