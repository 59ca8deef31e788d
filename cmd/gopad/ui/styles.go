// Package ui provides the visual styling for the gopad terminal front end.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light Mode Colors (Default)
	LightBackground = lipgloss.Color("#f4f5f6")
	LightForeground = lipgloss.Color("#1b2433")
	LightPrimary    = lipgloss.Color("#00758f") // Go blue, darkened for light terminals
	LightAccent     = lipgloss.Color("#00add8")
	LightMuted      = lipgloss.Color("#8a94a3")
	LightBorder     = lipgloss.Color("#c9d1db")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#141d2b")
	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#00add8")
	DarkAccent     = lipgloss.Color("#5dc9e2")
	DarkMuted      = lipgloss.Color("#6b7a90")
	DarkBorder     = lipgloss.Color("#2a3850")
	DarkCard       = lipgloss.Color("#1a2536")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme guesses the terminal background from COLORFGBG, with
// GOPAD_DARK_MODE=1 forcing dark mode.
func DetectTheme() Theme {
	if os.Getenv("GOPAD_DARK_MODE") == "1" {
		return DarkTheme()
	}
	// Format is usually "foreground;background"
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
			if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
				return DarkTheme()
			}
		}
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Pane    lipgloss.Style
	Focused lipgloss.Style

	// Text
	Title lipgloss.Style
	Muted lipgloss.Style
	Bold  lipgloss.Style

	// Transcript
	InLabel  lipgloss.Style
	OutLabel lipgloss.Style
	Stdout   lipgloss.Style
	Notice   lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Tree preview
	TreeType  lipgloss.Style
	TreeField lipgloss.Style
	TreeText  lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Pane:    pane,
		Focused: pane.BorderForeground(theme.Accent),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		InLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		OutLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Stdout: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2),

		Notice: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		TreeType: lipgloss.NewStyle().
			Foreground(theme.Primary),

		TreeField: lipgloss.NewStyle().
			Foreground(theme.Muted),

		TreeText: lipgloss.NewStyle().
			Foreground(theme.Accent),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width < 0 {
		width = 0
	}
	return s.Muted.Render(strings.Repeat("─", width))
}
