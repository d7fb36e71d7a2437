// Package console prints the pipeline's progress lines.
package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Console writes "<step>... DONE" lines to a writer. The DONE token is
// coloured only when the writer is a colour terminal and NO_COLOR is unset.
type Console struct {
	w      io.Writer
	done   lipgloss.Style
	failed lipgloss.Style
	detail lipgloss.Style
}

// New creates a console that detects the colour profile of w.
func New(w io.Writer) *Console {
	renderer := lipgloss.NewRenderer(w)
	if termenv.EnvNoColor() {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return newConsole(w, renderer)
}

// NewPlain creates a console that never emits escape sequences.
func NewPlain(w io.Writer) *Console {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
	renderer.SetColorProfile(termenv.Ascii)

	return newConsole(w, renderer)
}

func newConsole(w io.Writer, r *lipgloss.Renderer) *Console {
	return &Console{
		w:      w,
		done:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		failed: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		detail: r.NewStyle().Faint(true),
	}
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.w
}

// Step starts a progress line.
func (c *Console) Step(msg string) {
	fmt.Fprintf(c.w, "%s... ", msg)
}

// Done ends the current line. A non-empty detail is appended in parentheses.
func (c *Console) Done(detail string) {
	if detail == "" {
		fmt.Fprintln(c.w, c.done.Render("DONE"))
		return
	}

	fmt.Fprintf(c.w, "%s %s\n", c.done.Render("DONE"), c.detail.Render("("+detail+")"))
}

// Failed ends the current line after an error.
func (c *Console) Failed() {
	fmt.Fprintln(c.w, c.failed.Render("FAILED"))
}

// Println writes a plain line.
func (c *Console) Println(a ...interface{}) {
	fmt.Fprintln(c.w, a...)
}
