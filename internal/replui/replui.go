// Package replui is a small interactive REPL for typing Tcl commands by hand
// against a running session and watching the command/response traffic, laid
// out as a single scrollback pane above one input line.
package replui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tcldrv/tcldrv/internal/handle"
)

// Evaluator is the narrow surface replui needs from a running tool session.
// *tcldrv.Tool and *session.Session both satisfy it.
type Evaluator interface {
	Eval(cmd string) (*handle.Handle, error)
}

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type model struct {
	eval     Evaluator
	input    textinput.Model
	viewport viewport.Model
	history  []string
	width    int
	quitting bool
}

func newModel(eval Evaluator) model {
	ti := textinput.New()
	ti.Placeholder = "tcl command"
	ti.Prompt = "notcl> "
	ti.Focus()

	vp := viewport.New(80, 20)

	return model{eval: eval, input: ti, viewport: vp}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 3
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			cmd := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if cmd == "" {
				return m, nil
			}
			if cmd == "exit" || cmd == "quit" {
				m.quitting = true
				return m, tea.Quit
			}
			m.history = append(m.history, promptStyle.Render("notcl> "+cmd))
			h, err := m.eval.Eval(cmd)
			if err != nil {
				m.history = append(m.history, errorStyle.Render(err.Error()))
			} else {
				m.history = append(m.history, resultStyle.Render(h.String()))
			}
			m.refreshViewport()
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) refreshViewport() {
	wrapped := wordwrap.String(strings.Join(m.history, "\n"), max(m.width, 1))
	m.viewport.SetContent(wrapped)
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("%s\n%s\n%s",
		m.viewport.View(),
		helpStyle.Render("enter: evaluate · esc/ctrl+c: quit"),
		m.input.View(),
	)
}

// Run starts the REPL against eval and blocks until the user quits. Any
// error from the underlying Bubble Tea program is returned; evaluation
// errors are shown inline and do not end the session.
func Run(eval Evaluator) error {
	p := tea.NewProgram(newModel(eval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
