// Package trace builds and renders derivation trees: for any active flag,
// the chain of causes that produced it, down to the injected inputs. This is
// the white-box surface of the runtime; the kernel records sources, trace
// makes them readable.
package trace

import (
	"fmt"
	"strings"

	"boilw/internal/core"
	"boilw/internal/logging"
	"boilw/internal/types"
)

// NodeKind classifies a trace node.
type NodeKind int

const (
	// KindInput is an injected stimulus, a leaf of every proof.
	KindInput NodeKind = iota
	// KindDerived is a flag activated by a rule.
	KindDerived
	// KindMissing is referenced as a cause but not active; indicates a
	// stale snapshot or an inconsistent store.
	KindMissing
)

// Node is one step in a derivation tree.
type Node struct {
	ID       types.FlagID
	Label    string
	Kind     NodeKind
	Rule     string // rule name that derived this node, if recorded
	Tick     int
	Children []*Node
}

// Build constructs the derivation tree for a target flag from a kernel
// snapshot. Shared causes appear once per path; cycles (possible after
// Inject over a derived flag) are cut at the repeated node.
func Build(snap core.Snapshot, target types.FlagID) (*Node, error) {
	timer := logging.StartTimer(logging.CategoryTrace, "Build")
	defer timer.Stop()

	if _, ok := snap.Active[target]; !ok {
		return nil, fmt.Errorf("memory does not contain %q", labelOf(snap, target))
	}
	return build(snap, target, make(map[types.FlagID]bool)), nil
}

// BuildByLabel resolves a label against the kernel and builds its tree.
func BuildByLabel(k *core.Kernel, label string) (*Node, error) {
	id, ok := k.Lookup(label)
	if !ok {
		return nil, fmt.Errorf("unknown concept: %q", label)
	}
	return Build(k.Snapshot(), id)
}

func build(snap core.Snapshot, id types.FlagID, onPath map[types.FlagID]bool) *Node {
	node := &Node{ID: id, Label: labelOf(snap, id)}

	src, active := snap.Active[id]
	switch {
	case !active:
		node.Kind = KindMissing
		return node
	case src.Kind == types.SourceInput:
		node.Kind = KindInput
		return node
	}

	node.Kind = KindDerived
	node.Rule = src.Rule
	node.Tick = src.Tick

	if onPath[id] {
		return node // cycle cut
	}
	onPath[id] = true
	for _, cause := range src.Causes {
		node.Children = append(node.Children, build(snap, cause, onPath))
	}
	delete(onPath, id)

	return node
}

func labelOf(snap core.Snapshot, id types.FlagID) string {
	if label, ok := snap.Labels[id]; ok && label != "" {
		return label
	}
	return fmt.Sprintf("?%d", id)
}

// Depth returns the longest path length from the node to a leaf.
func (n *Node) Depth() int {
	max := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Inputs returns the distinct input labels supporting this node, in
// first-encounter order.
func (n *Node) Inputs() []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*Node)
	walk = func(node *Node) {
		if node.Kind == KindInput && !seen[node.Label] {
			seen[node.Label] = true
			out = append(out, node.Label)
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// Flatten returns the tree in preorder.
func (n *Node) Flatten() []*Node {
	out := []*Node{n}
	for _, c := range n.Children {
		out = append(out, c.Flatten()...)
	}
	return out
}

// String renders the tree without styling, one node per line.
func (n *Node) String() string {
	var sb strings.Builder
	writePlain(&sb, n, "", true, true)
	return sb.String()
}

func writePlain(sb *strings.Builder, n *Node, prefix string, isLast, isRoot bool) {
	if isRoot {
		sb.WriteString(n.PlainText())
		sb.WriteString("\n")
	} else {
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(n.PlainText())
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
		writePlain(sb, c, childPrefix, i == len(n.Children)-1, false)
	}
}

// PlainText renders one node without styling.
func (n *Node) PlainText() string {
	switch n.Kind {
	case KindInput:
		return fmt.Sprintf("`%s` (Input)", n.Label)
	case KindMissing:
		return fmt.Sprintf("`%s` (MISSING)", n.Label)
	default:
		return fmt.Sprintf("`%s`", n.Label)
	}
}
