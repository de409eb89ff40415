package report

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EnvTheme forces a palette: "latte"/"light" or "macchiato"/"dark".
const EnvTheme = "CATPPUCCIN_THEME"

// Theme defines semantic color roles for console output.
type Theme struct {
	Success lipgloss.Color // Green - completed jobs
	Failure lipgloss.Color // Red - failed jobs and errors
	Warning lipgloss.Color // Peach - waits and retries
	Accent  lipgloss.Color // Teal - job names
	Muted   lipgloss.Color // Overlay2 - progress lines, hints
}

// Latte returns the Catppuccin Latte (light) theme.
func Latte() Theme {
	return Theme{
		Success: lipgloss.Color("#40a02b"), // Green
		Failure: lipgloss.Color("#d20f39"), // Red
		Warning: lipgloss.Color("#fe640b"), // Peach
		Accent:  lipgloss.Color("#179299"), // Teal
		Muted:   lipgloss.Color("#7c7f93"), // Overlay2
	}
}

// Macchiato returns the Catppuccin Macchiato (medium-dark) theme.
func Macchiato() Theme {
	return Theme{
		Success: lipgloss.Color("#a6da95"), // Green
		Failure: lipgloss.Color("#ed8796"), // Red
		Warning: lipgloss.Color("#f5a97f"), // Peach
		Accent:  lipgloss.Color("#8bd5ca"), // Teal
		Muted:   lipgloss.Color("#939ab7"), // Overlay2
	}
}

// DetectTheme picks a theme from CATPPUCCIN_THEME, falling back to the
// terminal background.
func DetectTheme() Theme {
	if env := os.Getenv(EnvTheme); env != "" {
		switch strings.ToLower(env) {
		case "latte", "light":
			return Latte()
		case "macchiato", "dark":
			return Macchiato()
		}
	}

	if lipgloss.HasDarkBackground() {
		return Macchiato()
	}

	return Latte()
}

type styles struct {
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	accent  lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, th Theme) styles {
	return styles{
		success: r.NewStyle().Foreground(th.Success),
		failure: r.NewStyle().Bold(true).Foreground(th.Failure),
		warning: r.NewStyle().Foreground(th.Warning),
		accent:  r.NewStyle().Bold(true).Foreground(th.Accent),
		muted:   r.NewStyle().Foreground(th.Muted),
	}
}
