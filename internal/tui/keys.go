package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Indent   key.Binding
	Outdent  key.Binding
	Toggle   key.Binding
	Grab     key.Binding
	Drop     key.Binding
	Cancel   key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		MoveUp:   key.NewBinding(key.WithKeys("shift+up", "K"), key.WithHelp("K", "move up")),
		MoveDown: key.NewBinding(key.WithKeys("shift+down", "J"), key.WithHelp("J", "move down")),
		Indent:   key.NewBinding(key.WithKeys("tab", "l"), key.WithHelp("tab", "indent")),
		Outdent:  key.NewBinding(key.WithKeys("shift+tab", "h"), key.WithHelp("shift+tab", "outdent")),
		Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "collapse")),
		Grab:     key.NewBinding(key.WithKeys("g", "m"), key.WithHelp("g", "drag")),
		Drop:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) browseHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.MoveUp, k.MoveDown, k.Indent, k.Outdent, k.Toggle, k.Grab, k.Quit}
}

func (k keyMap) dragHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Drop, k.Cancel}
}
