package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the text styles used in text mode.
type Styles struct {
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Context lipgloss.Style
}

// newStyles builds styles bound to w. Colour is dropped when colored is
// false so markdown and piped output stay free of escape codes.
func newStyles(w io.Writer, colored bool) *Styles {
	r := lipgloss.NewRenderer(w)
	if !colored {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("2")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("3")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Info:    r.NewStyle().Foreground(lipgloss.Color("4")),
		Context: r.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
	}
}
