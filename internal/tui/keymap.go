package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Tap    key.Binding
	Preset key.Binding
	Reset  key.Binding
	Share  key.Binding
	Quit   key.Binding
}

// newKeyMap binds space plus any configured extra characters as tap keys.
// Collisions with the control bindings are rejected upstream by config
// validation.
func newKeyMap(tapKeys string) keyMap {
	taps := []string{" "}
	for _, r := range tapKeys {
		if r == ' ' {
			continue
		}
		taps = append(taps, string(r))
	}
	return keyMap{
		Tap:    key.NewBinding(key.WithKeys(taps...), key.WithHelp("space/click", "tap")),
		Preset: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "duration")),
		Reset:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Share:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy result")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tap, k.Preset, k.Reset, k.Share, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tap, k.Preset}, {k.Reset, k.Share, k.Quit}}
}
