package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all TUI key bindings.
type keyMap struct {
	Select  key.Binding
	Up      key.Binding
	Down    key.Binding
	Back    key.Binding
	Restart key.Binding
	Xray    key.Binding
	History key.Binding
	Quit    key.Binding
	Help    key.Binding
	PgUp    key.Binding
	PgDown  key.Binding
}

var keys = keyMap{
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "choose"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Back: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "go back"),
	),
	Restart: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "restart"),
	),
	Xray: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "xray"),
	),
	History: key.NewBinding(
		key.WithKeys("H"),
		key.WithHelp("H", "history"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll down"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(mode playMode, overlay overlayKind) string {
	switch overlay {
	case overlayXray:
		return keyStyle.Render("v") + keyDescStyle.Render(":verbose") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":close") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	case overlayHistory:
		return keyStyle.Render("Esc") + keyDescStyle.Render(":close") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}

	switch mode {
	case modeEnded:
		return keyStyle.Render("R") + keyDescStyle.Render(":restart") + "  " +
			keyStyle.Render("H") + keyDescStyle.Render(":history") + "  " +
			keyStyle.Render("x") + keyDescStyle.Render(":xray") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	case modeInput:
		return keyStyle.Render("enter") + keyDescStyle.Render(":submit") + "  " +
			keyStyle.Render("esc") + keyDescStyle.Render(":back") + "  " +
			keyStyle.Render("ctrl+x") + keyDescStyle.Render(":xray") + "  " +
			keyStyle.Render("ctrl+c") + keyDescStyle.Render(":quit")
	}
	return keyStyle.Render("enter") + keyDescStyle.Render(":choose") + "  " +
		keyStyle.Render("↑↓") + keyDescStyle.Render(":select") + "  " +
		keyStyle.Render("1-9") + keyDescStyle.Render(":quick") + "  " +
		keyStyle.Render("b") + keyDescStyle.Render(":back") + "  " +
		keyStyle.Render("R") + keyDescStyle.Render(":restart") + "  " +
		keyStyle.Render("x") + keyDescStyle.Render(":xray") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":quit") + "  " +
		keyStyle.Render("?") + keyDescStyle.Render(":help")
}
