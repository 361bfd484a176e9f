// Package tui implements the terminal story player: a Bubble Tea app
// over a playback session, with a choice list, free-text input for
// INPUT passages, and an xray overlay exposing the state snapshot.
package tui

import "github.com/charmbracelet/lipgloss"

// Glyphs convey meaning without relying on color alone.
const (
	GlyphChoice   = "▸"
	GlyphInput    = "✎"
	GlyphEnding   = "◼"
	GlyphBlocked  = "✗"
	GlyphBookmark = "↻"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var resumeBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

// --- Choice list styles ---

var (
	choiceNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	choiceCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	endingStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)

// --- Panel styles ---

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	blockedStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyBarStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// --- Ending banner ---

var endingBannerStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorCyan).
	Foreground(colorCyan).
	Bold(true).
	Padding(0, 2).
	Align(lipgloss.Center)

// --- Xray overlay styles ---

var (
	overlayBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorCyan).
			Padding(0, 1)

	overlayTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	varNameStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	varValueStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	historyTypeStyle = lipgloss.NewStyle().
				Foreground(colorGreen)
)

// --- Error style ---

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)
