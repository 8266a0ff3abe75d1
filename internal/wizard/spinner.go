package wizard

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// IsTTY reports whether stdout is an interactive terminal
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

type taskModel struct {
	spinner spinner.Model
	message string
	done    bool
	err     error
	result  any
}

type taskDoneMsg struct {
	result any
	err    error
}

func newTaskModel(message string) taskModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return taskModel{spinner: s, message: message}
}

func (m taskModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err = context.Canceled
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case taskDoneMsg:
		m.done = true
		m.err = msg.err
		m.result = msg.result
		return m, tea.Quit
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m taskModel) View() string {
	if m.done {
		return outcomeLine(m.message, m.err) + "\n"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), messageStyle.Render(m.message))
}

func outcomeLine(message string, err error) string {
	if err != nil {
		return errorStyle.Render("✗ " + message + " failed: " + err.Error())
	}
	return successStyle.Render("✓ " + message)
}

// RunWithSpinner runs fn while a spinner shows message on stderr. Without a
// terminal a single status line is printed instead.
func RunWithSpinner[T any](ctx context.Context, message string, fn func() (T, error)) (T, error) {
	var zero T
	if !IsTTY() {
		return runPlain(os.Stderr, message, fn)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newTaskModel(message), tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	go func() {
		result, err := fn()
		p.Send(taskDoneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return zero, err
	}
	m, ok := final.(taskModel)
	if !ok {
		return zero, fmt.Errorf("unexpected model type %T", final)
	}
	if m.err != nil {
		return zero, m.err
	}
	result, _ := m.result.(T)
	return result, nil
}

func runPlain[T any](w io.Writer, message string, fn func() (T, error)) (T, error) {
	fmt.Fprintln(w, messageStyle.Render(message+"..."))
	result, err := fn()
	fmt.Fprintln(w, outcomeLine(message, err))
	return result, err
}
