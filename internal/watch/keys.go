package watch

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Close    key.Binding
	Stop     key.Binding
	Raise    key.Binding
	Lower    key.Binding
	Identify key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Close, k.Stop, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Open, k.Close, k.Stop},
		{k.Raise, k.Lower, k.Identify},
		{k.Help, k.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open"),
		),
		Close: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "close"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s", " "),
			key.WithHelp("s/space", "stop"),
		),
		Raise: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "raise 10%"),
		),
		Lower: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "lower 10%"),
		),
		Identify: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "identify"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
