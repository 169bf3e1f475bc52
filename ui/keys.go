package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Speak   key.Binding
	Pause   key.Binding
	Stop    key.Binding
	Export  key.Binding
	CopyURL key.Binding
	Voices  key.Binding
	Refresh key.Binding

	Faster    key.Binding
	Slower    key.Binding
	PitchUp   key.Binding
	PitchDown key.Binding
	Louder    key.Binding
	Quieter   key.Binding

	Help key.Binding
	Quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Speak:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "speak")),
		Pause:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "pause/resume")),
		Stop:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		Export:  key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "export")),
		CopyURL: key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy link")),
		Voices:  key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "voices")),
		Refresh: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload voices")),

		Faster:    key.NewBinding(key.WithKeys("alt+=", "alt++"), key.WithHelp("alt+=/-", "rate")),
		Slower:    key.NewBinding(key.WithKeys("alt+-", "alt+_")),
		PitchUp:   key.NewBinding(key.WithKeys("alt+]"), key.WithHelp("alt+]/[", "pitch")),
		PitchDown: key.NewBinding(key.WithKeys("alt+[")),
		Louder:    key.NewBinding(key.WithKeys("alt+."), key.WithHelp("alt+./,", "volume")),
		Quieter:   key.NewBinding(key.WithKeys("alt+,")),

		Help: key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
		Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Speak, k.Export, k.Voices, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Speak, k.Pause, k.Stop},
		{k.Export, k.CopyURL},
		{k.Voices, k.Refresh},
		{k.Faster, k.PitchUp, k.Louder},
		{k.Help, k.Quit},
	}
}
