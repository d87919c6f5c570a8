package color

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Report colors with light/dark mode variants
var (
	ColorSuccess = lipgloss.AdaptiveColor{
		Light: "#059669",
		Dark:  "#10B981",
	}
	ColorError = lipgloss.AdaptiveColor{
		Light: "#DC2626",
		Dark:  "#EF4444",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#9CA3AF",
		Dark:  "#6B7280",
	}
)

// Styles used by command output
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Disable turns off colored output, e.g. when NO_COLOR is set or output is
// not a terminal.
func Disable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// Configure disables colors when NO_COLOR is set.
func Configure() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		Disable()
	}
}

// Valid renders a passing template line.
func Valid(name string) string {
	return SuccessStyle.Render(name + ": ✔")
}

// Invalid renders a failing template line.
func Invalid(name string) string {
	return ErrorStyle.Render(name + ": ✗")
}

// Reason renders one itemized failure reason.
func Reason(reason string) string {
	return MutedStyle.Render("- " + reason)
}
