package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts for the application.
// The update bindings drive the simulated update service; the rest act on
// the host itself.
type KeyMap struct {
	// Update dialog
	Accept    key.Binding
	Reject    key.Binding
	Interrupt key.Binding

	// Simulated service
	Download     key.Binding
	FailDownload key.Binding
	Install      key.Binding
	Availability key.Binding

	// Host
	Resume key.Binding
	Copy   key.Binding
	Help   key.Binding
	Escape key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Accept: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Accept update"),
		),
		Reject: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Reject update"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Interrupt flow"),
		),

		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Advance download"),
		),
		FailDownload: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Fail download"),
		),
		Install: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Finish install"),
		),
		Availability: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Toggle availability"),
		),

		Resume: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Resume (re-check)"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Copy status"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "Close help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "Quit"),
		),
	}
}

// ShortHelp implements help.KeyMap for the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Reject, k.Download, k.Resume, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Accept, k.Reject, k.Interrupt},
		{k.Download, k.FailDownload, k.Install, k.Availability},
		{k.Resume, k.Copy, k.Help, k.Quit},
	}
}
