package ui

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunWithSpinner shows an animated spinner with label on stderr while fn
// runs. Non-interactive mode skips the spinner and runs fn synchronously.
// Ctrl+C cancels fn's context and reports context.Canceled.
func RunWithSpinner(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	if IsNoInteraction() {
		return fn(ctx)
	}

	fnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := &busyModel{
		spin: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(purple)),
		),
		label: label,
	}
	prog := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithContext(ctx))

	go func() {
		m.err = fn(fnCtx)
		prog.Send(busyDoneMsg{})
	}()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("spinner: %w", err)
	}
	if m.interrupted {
		cancel()
		return context.Canceled
	}
	return m.err
}

type busyDoneMsg struct{}

type busyModel struct {
	spin        spinner.Model
	label       string
	err         error
	done        bool
	interrupted bool
}

func (m *busyModel) Init() tea.Cmd { return m.spin.Tick }

func (m *busyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}
	case busyDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *busyModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	return m.spin.View() + " " + m.label + "\n"
}
