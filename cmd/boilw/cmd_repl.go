package main

import (
	"fmt"
	"strings"

	"boilw/internal/core"
	"boilw/internal/logging"
	"boilw/internal/trace"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session: inject stimuli, watch derivations fire",
	Long: `Starts an interactive session against the loaded knowledge base.

Type flag labels (comma separated) to inject them as stimuli; the mind
ponders after each input and prints what fired. Commands:

  :trace <flag>   show the cause tree for an active flag
  :active         list active flags
  :reset          clear working memory
  :quit           leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		logging.Repl("Interactive session started")
		p := tea.NewProgram(newReplModel(s.kernel))
		_, err = p.Run()
		return err
	},
}

func init() {
	replCmd.Flags().StringVar(&pluginsDir, "plugins", "", "Load knowledge plugins from this directory")
}

var (
	replPromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	replErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	replDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// replHistory bounds how many output lines the view keeps.
const replHistory = 200

type replModel struct {
	kernel *core.Kernel
	input  textinput.Model
	lines  []string
}

func newReplModel(k *core.Kernel) replModel {
	ti := textinput.New()
	ti.Placeholder = "stimuli or :command (Ctrl+C to exit)"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 64

	return replModel{
		kernel: k,
		input:  ti,
		lines: []string{
			replDimStyle.Render(fmt.Sprintf("%d flags, %d rules loaded. Type stimuli to inject.",
				len(k.Flags()), len(k.Rules()))),
		},
	}
}

func (m replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			if line == ":quit" || line == ":q" {
				return m, tea.Quit
			}
			m = m.handle(line)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m replModel) View() string {
	var sb strings.Builder
	for _, line := range m.lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(replPromptStyle.Render("boilw> "))
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	return sb.String()
}

func (m replModel) handle(line string) replModel {
	m.lines = append(m.lines, replPromptStyle.Render("boilw> ")+line)

	switch {
	case strings.HasPrefix(line, ":trace "):
		target := strings.TrimSpace(strings.TrimPrefix(line, ":trace "))
		node, err := trace.BuildByLabel(m.kernel, target)
		if err != nil {
			return m.echoErr(err)
		}
		m = m.echo(trace.RenderHeader(target))
		for _, l := range strings.Split(strings.TrimRight(trace.Render(node), "\n"), "\n") {
			m = m.echo(l)
		}
		return m

	case line == ":active":
		ids := m.kernel.Active()
		if len(ids) == 0 {
			return m.echo(replDimStyle.Render("working memory is empty"))
		}
		labels := make([]string, 0, len(ids))
		for _, id := range ids {
			labels = append(labels, m.kernel.Label(id))
		}
		return m.echo(strings.Join(labels, ", "))

	case line == ":reset":
		m.kernel.Reset()
		return m.echo(replDimStyle.Render("working memory cleared"))

	case strings.HasPrefix(line, ":"):
		return m.echoErr(fmt.Errorf("unknown command %q", line))
	}

	// Anything else is stimuli, comma separated.
	var stimuli []string
	for _, part := range strings.Split(line, ",") {
		if p := strings.TrimSpace(part); p != "" {
			stimuli = append(stimuli, p)
		}
	}
	for _, stim := range stimuli {
		m = m.echo(trace.FormatStimulus(stim))
	}
	m.kernel.Inject(stimuli...)

	firings, err := m.kernel.Ponder()
	if err != nil {
		return m.echoErr(err)
	}
	if len(firings) == 0 {
		return m.echo(replDimStyle.Render("nothing fired"))
	}
	for _, f := range firings {
		m = m.echo(fmt.Sprintf("[Tick %d] %s", f.Tick, trace.FormatFiring(m.kernel, f)))
	}
	return m
}

func (m replModel) echo(line string) replModel {
	m.lines = append(m.lines, line)
	if len(m.lines) > replHistory {
		m.lines = m.lines[len(m.lines)-replHistory:]
	}
	return m
}

func (m replModel) echoErr(err error) replModel {
	return m.echo(replErrStyle.Render("error: " + err.Error()))
}
