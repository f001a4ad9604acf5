// Package tui is the terminal listener: site pages plus a persistent mini player.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the listener and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	b := newBubble(ctx, opts)
	defer b.unsubscribe()

	_, err := tea.NewProgram(b, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
