// Package tui renders a module run as an interactive progress view.
package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/fpgaflow/internal/module"
)

// ErrInterrupted is returned when the user quits before the module finished.
var ErrInterrupted = errors.New("tui: interrupted")

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

type progressMsg module.Progress

type finishedMsg struct {
	err error
}

// Model shows the phases a module has completed and the one in flight.
type Model struct {
	module   string
	phases   int
	spinner  spinner.Model
	done     []string
	current  string
	phase    int
	err      error
	finished bool
	quit     bool
}

// NewModel returns a view for a module declaring the given phase count.
func NewModel(name string, phases int) *Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = titleStyle
	return &Model{module: name, phases: phases, spinner: spin}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles progress, completion and quit keys.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		if m.current != "" {
			m.done = append(m.done, m.current)
		}
		m.current = msg.Message
		m.phase = msg.Phase
		return m, nil
	case finishedMsg:
		m.err = msg.err
		m.finished = true
		if m.err == nil && m.current != "" {
			m.done = append(m.done, m.current)
			m.current = ""
		}
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quit = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the phase list.
func (m *Model) View() string {
	var b strings.Builder
	for _, line := range m.done {
		b.WriteString(doneStyle.Render("✓ "+line) + "\n")
	}
	switch {
	case m.err != nil:
		b.WriteString(failStyle.Render("✗ "+m.current) + "\n")
		b.WriteString(detailStyle.Render(m.err.Error()) + "\n")
	case m.finished:
		b.WriteString(titleStyle.Render(m.module) + " " + counterStyle.Render("done") + "\n")
	case m.current != "":
		counter := counterStyle.Render(fmt.Sprintf("[%d/%d]", m.phase, m.phases))
		b.WriteString(fmt.Sprintf("%s %s %s %s\n", m.spinner.View(), titleStyle.Render(m.module), counter, m.current))
	default:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), titleStyle.Render(m.module)))
	}
	return b.String()
}

// Err returns the module error once finished, or ErrInterrupted.
func (m *Model) Err() error {
	if m.quit && !m.finished {
		return ErrInterrupted
	}
	return m.err
}

// Run executes mod under the progress view writing to out.
func Run(mod module.Module, ctx *module.Context, in io.Reader, out io.Writer) error {
	desc := mod.Descriptor()
	model := NewModel(desc.Name, desc.Phases)
	opts := []tea.ProgramOption{tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	program := tea.NewProgram(model, opts...)
	go func() {
		err := module.Run(mod, ctx, func(p module.Progress) {
			program.Send(progressMsg(p))
		})
		program.Send(finishedMsg{err: err})
	}()
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return model.Err()
}
