// ABOUTME: Shared lipgloss styles for consistent terminal output
// ABOUTME: Palette, status styles and the session expiry bar

package styles

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Danger    = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray
	Text      = lipgloss.Color("#F9FAFB") // Light
	Accent    = lipgloss.Color("#8B5CF6") // Lighter purple for highlights

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted)

	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusCritical = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	Help = lipgloss.NewStyle().
		Foreground(Muted).
		MarginTop(1)

	KeyStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)
)

// Session states shown next to the expiry
const (
	StateValid     = "valid"
	StateRefresh   = "refresh due"
	StateExpired   = "expired"
	StateNoExpiry  = "no expiry"
	StateLoggedOut = "logged out"
)

// SessionState classifies the time left on a token against the refresh margin
func SessionState(remaining, margin time.Duration, hasExpiry bool) string {
	switch {
	case !hasExpiry:
		return StateNoExpiry
	case remaining <= 0:
		return StateExpired
	case remaining <= margin:
		return StateRefresh
	default:
		return StateValid
	}
}

// RenderState styles a session state label
func RenderState(state string) string {
	switch state {
	case StateValid, StateNoExpiry:
		return StatusOK.Render(state)
	case StateRefresh:
		return StatusWarning.Render(state)
	default:
		return StatusCritical.Render(state)
	}
}

// ExpiryBar renders the share of the token lifetime still remaining
func ExpiryBar(remaining, lifetime time.Duration, width int) string {
	if width <= 0 || lifetime <= 0 {
		return ""
	}
	filled := int(float64(remaining) / float64(lifetime) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	color := Secondary
	percent := float64(remaining) / float64(lifetime) * 100
	if percent <= 20 {
		color = Warning
	}
	if percent <= 5 {
		color = Danger
	}
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}
