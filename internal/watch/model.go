package watch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/powerview-ble/internal/shade"
	"github.com/muurk/powerview-ble/internal/ui"
)

// positionStep is the change applied by the raise and lower keys
const positionStep = 10

// stateMsg carries a fresh snapshot of one shade
type stateMsg shade.State

// commandDoneMsg reports the end of a shade command
type commandDoneMsg struct {
	action string
	name   string
	err    error
}

// Model is the live telemetry dashboard
type Model struct {
	manager *shade.Manager
	updates <-chan shade.State
	timeout time.Duration

	states []shade.State
	cursor int

	busy      string
	status    string
	statusErr bool

	width  int
	height int

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// New creates a dashboard over manager. updates delivers telemetry snapshots;
// timeout bounds each command.
func New(manager *shade.Manager, updates <-chan shade.State, timeout time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.SpinnerStyle

	m := Model{
		manager: manager,
		updates: updates,
		timeout: timeout,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
	for _, sh := range manager.Shades() {
		m.states = append(m.states, sh.State())
	}
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.updates))
}

// waitForState delivers the next snapshot from updates
func waitForState(updates <-chan shade.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case stateMsg:
		m.upsert(shade.State(msg))
		return m, waitForState(m.updates)

	case commandDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.status = fmt.Sprintf("%s %s: %s", msg.name, msg.action, shade.ShortMessage(msg.err))
			m.statusErr = true
		} else {
			m.status = fmt.Sprintf("%s %s: done", msg.name, msg.action)
			m.statusErr = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.states)-1 {
			m.cursor++
		}
		return m, nil
	}

	if m.busy != "" || len(m.states) == 0 {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Open):
		return m.run("open", func(ctx context.Context, s *shade.Shade) error { return s.Open(ctx) })
	case key.Matches(msg, m.keys.Close):
		return m.run("close", func(ctx context.Context, s *shade.Shade) error { return s.Close(ctx) })
	case key.Matches(msg, m.keys.Stop):
		return m.run("stop", func(ctx context.Context, s *shade.Shade) error { return s.Stop(ctx) })
	case key.Matches(msg, m.keys.Identify):
		return m.run("identify", func(ctx context.Context, s *shade.Shade) error { return s.Identify(ctx, shade.DefaultIdentifyBeeps) })
	case key.Matches(msg, m.keys.Raise):
		return m.step(positionStep)
	case key.Matches(msg, m.keys.Lower):
		return m.step(-positionStep)
	}
	return m, nil
}

// step moves the selected shade by delta percent from its advertised position
func (m Model) step(delta int) (tea.Model, tea.Cmd) {
	st := m.states[m.cursor]
	if st.Telemetry == nil {
		m.status = st.Name + ": position unknown"
		m.statusErr = true
		return m, nil
	}
	target := clamp(int(st.Telemetry.Position+0.5)+delta, 0, 100)
	action := fmt.Sprintf("position %d%%", target)
	return m.run(action, func(ctx context.Context, s *shade.Shade) error { return s.MoveTo(ctx, target) })
}

// run starts fn against the selected shade
func (m Model) run(action string, fn func(ctx context.Context, s *shade.Shade) error) (tea.Model, tea.Cmd) {
	st := m.states[m.cursor]
	sh, err := m.manager.Get(st.Address)
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
		return m, nil
	}

	m.busy = fmt.Sprintf("%s %s", st.Name, action)
	m.status = ""
	timeout := m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return commandDoneMsg{action: action, name: st.Name, err: fn(ctx, sh)}
	}
}

// upsert stores st, keeping states ordered by address and the cursor on the
// same shade
func (m *Model) upsert(st shade.State) {
	selected := ""
	if m.cursor < len(m.states) {
		selected = m.states[m.cursor].Address
	}

	found := false
	for i := range m.states {
		if m.states[i].Address == st.Address {
			m.states[i] = st
			found = true
			break
		}
	}
	if !found {
		m.states = append(m.states, st)
		sort.Slice(m.states, func(i, j int) bool { return m.states[i].Address < m.states[j].Address })
	}

	for i := range m.states {
		if m.states[i].Address == selected {
			m.cursor = i
			return
		}
	}
}

// Selected returns the shade under the cursor
func (m Model) Selected() (shade.State, bool) {
	if m.cursor >= len(m.states) {
		return shade.State{}, false
	}
	return m.states[m.cursor], true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
