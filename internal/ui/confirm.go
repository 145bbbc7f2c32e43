package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box and asks for a yes/no answer on in.
// Only "y" or "yes" (any case) confirms; end of input declines.
func Confirm(in io.Reader, out io.Writer, title string, warnings ...string) bool {
	width := TerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("%s  %s", WarningMarker, title)), ""}
	for _, w := range warnings {
		lines = append(lines, ValueStyle.Render("• "+w))
	}
	if len(warnings) > 0 {
		lines = append(lines, "")
	}
	_, _ = fmt.Fprintln(out, BoxStyle(WarningColor, width).Render(strings.Join(lines, "\n")))

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, prompt.Render("Continue? [y/N]: "))

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		_, _ = fmt.Fprintln(out, HintStyle.Render("  Cancelled."))
		return false
	}
}
