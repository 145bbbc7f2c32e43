package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled output for CLI commands
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer. If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: TerminalWidth()}
}

// Width returns the rendering width
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the rendering width
func (p *Printer) SetWidth(width int) {
	p.width = width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Printf writes formatted content
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command banner with ordered parameters
func (p *Printer) PrintHeader(title, command string, params ...Field) {
	p.Println(RenderHeader(title, command, params, p.width))
}

// PrintSuccess prints a success box
func (p *Printer) PrintSuccess(title string, details ...Field) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details ...Field) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints a failure box with hints
func (p *Printer) PrintError(title string, err error, hints ...string) {
	p.Println(NewFailureResult(title, err, hints...).SetWidth(p.width).Render())
}

// PrintTable prints rows under a header line
func (p *Printer) PrintTable(t *Table) {
	p.Println(t.Render())
}

// RenderHeader renders a command banner
func RenderHeader(title, command string, params []Field, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	sections := []string{
		TitleStyle.Render(strings.ToUpper(title)),
		SubtitleStyle.Render(command),
	}
	if len(params) > 0 {
		sections = append(sections, "  "+Divider(width-6))
		for _, f := range params {
			sections = append(sections, SubtitleStyle.Render(f.Key+":")+" "+ValueStyle.Render(f.Value))
		}
	}

	return HeaderStyle(width).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
