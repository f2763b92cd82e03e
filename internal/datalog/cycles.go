package datalog

import (
	"sort"

	"boilw/internal/types"
)

// edge in the flag dependency graph: output depends on trigger (positive) or
// forbid (negative).
type edge struct {
	to       types.FlagID
	negative bool
}

// FindInhibitionCycles returns every strongly connected component of the
// dependency graph that contains an inhibitory edge. Such a component makes
// the base non-stratifiable: the outcome depends on which tick the inhibitor
// lands in.
func FindInhibitionCycles(rules []types.Rule, labelOf func(types.FlagID) string) [][]string {
	deps := make(map[types.FlagID][]edge)
	for _, r := range rules {
		for _, t := range r.Triggers {
			deps[r.Output] = append(deps[r.Output], edge{to: t})
		}
		for _, f := range r.Forbids {
			deps[r.Output] = append(deps[r.Output], edge{to: f, negative: true})
		}
	}

	sccs := tarjan(deps)

	var cycles [][]string
	for _, scc := range sccs {
		if len(scc) == 1 {
			// A single node is only a cycle if it depends on itself; the
			// kernel rejects self-triggers, but a rule may forbid its own
			// trigger chain through another rule, so check explicitly.
			if !hasInternalEdge(deps, scc) {
				continue
			}
		}
		if !hasNegativeInternalEdge(deps, scc) {
			continue
		}
		labels := make([]string, 0, len(scc))
		for _, id := range scc {
			labels = append(labels, labelOf(id))
		}
		sort.Strings(labels)
		cycles = append(cycles, labels)
	}

	sort.Slice(cycles, func(i, j int) bool {
		return len(cycles[i]) > 0 && len(cycles[j]) > 0 && cycles[i][0] < cycles[j][0]
	})
	return cycles
}

func inSet(scc []types.FlagID, id types.FlagID) bool {
	for _, s := range scc {
		if s == id {
			return true
		}
	}
	return false
}

func hasInternalEdge(deps map[types.FlagID][]edge, scc []types.FlagID) bool {
	for _, id := range scc {
		for _, e := range deps[id] {
			if inSet(scc, e.to) {
				return true
			}
		}
	}
	return false
}

func hasNegativeInternalEdge(deps map[types.FlagID][]edge, scc []types.FlagID) bool {
	for _, id := range scc {
		for _, e := range deps[id] {
			if e.negative && inSet(scc, e.to) {
				return true
			}
		}
	}
	return false
}

// tarjan computes strongly connected components iteratively.
func tarjan(deps map[types.FlagID][]edge) [][]types.FlagID {
	var nodes []types.FlagID
	seen := make(map[types.FlagID]bool)
	addNode := func(id types.FlagID) {
		if !seen[id] {
			seen[id] = true
			nodes = append(nodes, id)
		}
	}
	for from, edges := range deps {
		addNode(from)
		for _, e := range edges {
			addNode(e.to)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	index := make(map[types.FlagID]int)
	lowlink := make(map[types.FlagID]int)
	onStack := make(map[types.FlagID]bool)
	var stack []types.FlagID
	var sccs [][]types.FlagID
	next := 0

	type frame struct {
		node types.FlagID
		edge int
	}

	for _, start := range nodes {
		if _, visited := index[start]; visited {
			continue
		}

		callStack := []frame{{node: start}}
		index[start] = next
		lowlink[start] = next
		next++
		stack = append(stack, start)
		onStack[start] = true

		for len(callStack) > 0 {
			f := &callStack[len(callStack)-1]
			edges := deps[f.node]

			if f.edge < len(edges) {
				to := edges[f.edge].to
				f.edge++
				if _, visited := index[to]; !visited {
					index[to] = next
					lowlink[to] = next
					next++
					stack = append(stack, to)
					onStack[to] = true
					callStack = append(callStack, frame{node: to})
				} else if onStack[to] {
					if index[to] < lowlink[f.node] {
						lowlink[f.node] = index[to]
					}
				}
				continue
			}

			// All edges explored; pop.
			node := f.node
			callStack = callStack[:len(callStack)-1]
			if len(callStack) > 0 {
				parent := callStack[len(callStack)-1].node
				if lowlink[node] < lowlink[parent] {
					lowlink[parent] = lowlink[node]
				}
			}
			if lowlink[node] == index[node] {
				var scc []types.FlagID
				for {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[top] = false
					scc = append(scc, top)
					if top == node {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}

	return sccs
}
