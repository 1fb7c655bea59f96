package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// keyMap defines the key bindings of the viewer.
type keyMap struct {
	Quit     key.Binding
	NextWF   key.Binding
	PrevWF   key.Binding
	Down     key.Binding
	Up       key.Binding
	Logs     key.Binding
	Search   key.Binding
	Clear    key.Binding
	Yank     key.Binding
	Refresh  key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Help     key.Binding
}

var _ help.KeyMap = keyMap{}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		NextWF:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "workflow")),
		PrevWF:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev workflow")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/↓", "down")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/↑", "up")),
		Logs:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "logs")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Clear:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		Yank:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "log up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "log down")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.NextWF, k.Down, k.Up, k.Logs, k.Search, k.Yank, k.Refresh, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up, k.NextWF, k.PrevWF},
		{k.Logs, k.PageUp, k.PageDown},
		{k.Search, k.Clear, k.Yank},
		{k.Refresh, k.Help, k.Quit},
	}
}
