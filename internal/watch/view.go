package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/powerview-ble/internal/shade"
	"github.com/muurk/powerview-ble/internal/ui"
	"github.com/muurk/powerview-ble/internal/version"
)

const barWidth = 10

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true).
			Padding(1, 0, 0, 2)

	rowStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			PaddingLeft(2)

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(ui.SuccessColor).
				Bold(true)

	movingStyle = lipgloss.NewStyle().
			Foreground(ui.WarningColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			PaddingLeft(2)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(ui.ErrorColor).
				PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Padding(1, 0, 0, 2)
)

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("POWERVIEW SHADES"))
	b.WriteString(ui.HintStyle.Render("  " + version.Version))
	b.WriteString("\n\n")

	if len(m.states) == 0 {
		b.WriteString(rowStyle.Render(m.spinner.View() + " Waiting for shade advertisements..."))
		b.WriteString("\n")
	} else {
		table := ui.NewTable("", "NAME", "ADDRESS", "POSITION", "TILT", "BATTERY", "STATE", "RSSI", "SEEN")
		for i, st := range m.states {
			marker := " "
			if i == m.cursor {
				marker = "›"
			}
			table.AddRow(append([]string{marker}, row(st)...)...)
		}
		lines := strings.Split(table.Render(), "\n")
		for i, line := range lines {
			if i > 0 && i-1 == m.cursor {
				line = selectedRowStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.busy != "":
		b.WriteString(statusStyle.Render(m.spinner.View() + " " + m.busy))
	case m.statusErr:
		b.WriteString(statusErrorStyle.Render(ui.FailureMarker + " " + m.status))
	case m.status != "":
		b.WriteString(statusStyle.Render(ui.SuccessMarker + " " + m.status))
	}
	b.WriteString("\n")

	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

// row renders the table cells for one shade
func row(st shade.State) []string {
	name := st.Name
	if st.Encrypted {
		name += " 🔒"
	}

	cells := []string{name, st.Address, "-", "-", "-", "unknown", rssi(st.RSSI), seen(st.LastSeen)}
	t := st.Telemetry
	if t == nil {
		return cells
	}

	cells[2] = fmt.Sprintf("%s %3.0f%%", bar(t.Position), t.Position)
	cells[3] = fmt.Sprintf("%d", t.Tilt)
	cells[4] = fmt.Sprintf("%d%%", t.BatteryLevel)
	switch {
	case t.IsOpening:
		cells[5] = movingStyle.Render("opening")
	case t.IsClosing:
		cells[5] = movingStyle.Render("closing")
	case t.BatteryCharging:
		cells[5] = "charging"
	case !st.Controls:
		cells[5] = "locked"
	default:
		cells[5] = "idle"
	}
	return cells
}

// bar renders pct as a fixed-width gauge
func bar(pct float64) string {
	filled := clamp(int(pct/100*barWidth+0.5), 0, barWidth)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func rssi(v int16) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%d dBm", v)
}

func seen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t).Round(time.Second)
	if d < time.Second {
		return "now"
	}
	return d.String() + " ago"
}
