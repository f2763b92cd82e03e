package trace

import (
	"fmt"
	"strings"

	"boilw/internal/core"
	"boilw/internal/types"

	"github.com/charmbracelet/lipgloss"
)

var (
	inputStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))            // green
	derivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true) // yellow
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true) // red
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // dim
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

// Render renders the tree with terminal styling: inputs green, derived
// yellow, missing red, the deriving rule name dimmed.
func Render(n *Node) string {
	var sb strings.Builder
	writeStyled(&sb, n, "", true, true)
	return sb.String()
}

// RenderHeader renders the standard trace banner for a target label.
func RenderHeader(label string) string {
	return headerStyle.Render(fmt.Sprintf("=== Trace: `%s` ===", label))
}

func writeStyled(sb *strings.Builder, n *Node, prefix string, isLast, isRoot bool) {
	if isRoot {
		sb.WriteString(n.styledText())
		sb.WriteString("\n")
	} else {
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(n.styledText())
		sb.WriteString("\n")
	}

	childPrefix := prefix
	if !isRoot {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	for i, c := range n.Children {
		writeStyled(sb, c, childPrefix, i == len(n.Children)-1, false)
	}
}

func (n *Node) styledText() string {
	switch n.Kind {
	case KindInput:
		return inputStyle.Render(fmt.Sprintf("`%s`", n.Label)) + " (Input)"
	case KindMissing:
		return missingStyle.Render(fmt.Sprintf("`%s` (MISSING)", n.Label))
	default:
		text := derivedStyle.Render(fmt.Sprintf("`%s`", n.Label))
		if n.Rule != "" {
			text += " " + ruleStyle.Render(fmt.Sprintf("[%s]", n.Rule))
		}
		return text
	}
}

// FormatFiring renders one rule application the way the runtime reports
// derivations: `CauseA`, `CauseB` ---> `Result`.
func FormatFiring(k *core.Kernel, f types.Firing) string {
	causes := make([]string, 0, len(f.Causes))
	for _, c := range f.Causes {
		causes = append(causes, fmt.Sprintf("`%s`", k.Label(c)))
	}
	out := derivedStyle.Render(fmt.Sprintf("`%s`", k.Label(f.Output)))
	return fmt.Sprintf("%s ---> %s", strings.Join(causes, ", "), out)
}

// FormatStimulus renders an injected input line: [Input] + `Label`.
func FormatStimulus(label string) string {
	return fmt.Sprintf("[Input] + %s", inputStyle.Render(fmt.Sprintf("`%s`", label)))
}
