package console

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ── Palette ──────────────────────────────────────────────────────────

var (
	colorBlue    = lipgloss.Color("#89b4fa")
	colorGreen   = lipgloss.Color("#a6e3a1")
	colorRed     = lipgloss.Color("#f38ba8")
	colorOverlay = lipgloss.Color("#7f849c")
)

// Styles decorate the console's output.  The zero value prints plain
// text.
type Styles struct {
	Me     lipgloss.Style // prefix of lines we sent
	Dev    lipgloss.Style // prefix of lines the board sent
	Fault  lipgloss.Style
	Status lipgloss.Style
}

// DefaultStyles returns the coloured styles used on terminals.
func DefaultStyles() Styles {
	return Styles{
		Me:     lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		Dev:    lipgloss.NewStyle().Bold(true).Foreground(colorGreen),
		Fault:  lipgloss.NewStyle().Foreground(colorRed),
		Status: lipgloss.NewStyle().Foreground(colorOverlay),
	}
}

// PlainStyles returns styles that leave text untouched.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Me: plain, Dev: plain, Fault: plain, Status: plain}
}

// StylesFor picks coloured styles when w is a terminal and colour has
// not been turned off.
func StylesFor(w io.Writer, noColor bool) Styles {
	if noColor {
		return PlainStyles()
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return DefaultStyles()
	}
	return PlainStyles()
}
