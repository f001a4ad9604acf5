package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap 听众界面的按键
type keyMap struct {
	quit, nextRoute, prevRoute,
	play, toggle,
	seekBack, seekForward,
	volumeUp, volumeDown,
	nextTrack, prevTrack,
	refresh, showHelp key.Binding
}

func newKeyMap() *keyMap {
	return &keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		nextRoute: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next page"),
		),
		prevRoute: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous page"),
		),
		play: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "play"),
		),
		toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		seekBack: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "back 5%"),
		),
		seekForward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "forward 5%"),
		),
		volumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "volume up"),
		),
		volumeDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "volume down"),
		),
		nextTrack: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next"),
		),
		prevTrack: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "previous"),
		),
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		showHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k *keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.nextRoute, k.play, k.toggle, k.showHelp, k.quit}
}

// FullHelp implements help.KeyMap
func (k *keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.nextRoute, k.prevRoute, k.refresh},
		{k.play, k.toggle, k.nextTrack, k.prevTrack},
		{k.seekBack, k.seekForward, k.volumeUp, k.volumeDown},
		{k.showHelp, k.quit},
	}
}
