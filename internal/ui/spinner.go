package ui

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Operation is work shown behind a spinner
type Operation func(ctx context.Context) error

type operationDoneMsg struct{ err error }

type spinnerModel struct {
	label   string
	spinner spinner.Model
	cancel  context.CancelFunc
	done    bool
	err     error
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case operationDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("  %s %s\n", m.spinner.View(), m.label)
}

// RunWithSpinner runs op while showing label next to a spinner. When stdout
// is not a terminal the label is printed once instead. Ctrl+C cancels the
// operation's context.
func RunWithSpinner(ctx context.Context, label string, op Operation) error {
	if !IsTerminal() {
		return runPlain(ctx, os.Stdout, label, op)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	p := tea.NewProgram(spinnerModel{label: label, spinner: s, cancel: cancel}, tea.WithOutput(os.Stdout))
	go func() {
		p.Send(operationDoneMsg{err: op(ctx)})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	return final.(spinnerModel).err
}

func runPlain(ctx context.Context, out io.Writer, label string, op Operation) error {
	_, _ = fmt.Fprintf(out, "  %s\n", label)
	return op(ctx)
}
