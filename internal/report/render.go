package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer writes a report, coloring pass and fail markers when the
// destination supports it.
type Renderer struct {
	pass    lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	summary lipgloss.Style
}

// NewRenderer returns a renderer whose color profile is detected from w.
func NewRenderer(w io.Writer) *Renderer {
	re := lipgloss.NewRenderer(w)
	return &Renderer{
		pass:    re.NewStyle().Foreground(lipgloss.Color("10")),
		fail:    re.NewStyle().Foreground(lipgloss.Color("9")),
		warn:    re.NewStyle().Foreground(lipgloss.Color("11")),
		dim:     re.NewStyle().Foreground(lipgloss.Color("241")),
		summary: re.NewStyle().Bold(true),
	}
}

// Render writes the report body followed by its summary.
func (rn *Renderer) Render(w io.Writer, r *Report) error {
	header := len(r.Header())
	for i, line := range r.Lines() {
		styled := rn.styleLine(line)
		if i < header {
			styled = rn.dim.Render(line)
		}
		if _, err := fmt.Fprintln(w, styled); err != nil {
			return err
		}
	}
	style := rn.pass
	if r.Failed() {
		style = rn.fail
	}
	_, err := fmt.Fprintln(w, style.Inherit(rn.summary).Render(r.Summary()))
	return err
}

func (rn *Renderer) styleLine(line string) string {
	switch {
	case line == DefinesHeading:
		return rn.dim.Render(line)
	case strings.HasPrefix(line, PassMark):
		return rn.pass.Render(PassMark) + strings.TrimPrefix(line, PassMark)
	case strings.HasPrefix(line, FailMark):
		return rn.fail.Render(FailMark) + strings.TrimPrefix(line, FailMark)
	case strings.Contains(line, " Warning "):
		return rn.warn.Render(line)
	case strings.HasPrefix(line, "   ") && strings.Contains(line, " Error "):
		return rn.fail.Render(line)
	}
	return line
}
