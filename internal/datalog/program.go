// Package datalog compiles the flag graph to a Google Mangle program and
// analyzes it: syntax/stratification via the Mangle analyzer, inhibition
// cycles via SCC analysis, and an optional cross-check of the kernel's
// closure against stratified evaluation. The kernel deliberately commits all
// firings of a tick together, so a rule base using inhibition can diverge
// from stratified semantics; `boilw check` makes that visible instead of
// letting it surprise at runtime.
package datalog

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"boilw/internal/types"
)

// Program is a Mangle rendering of a flag graph plus the mapping between
// flag labels and the predicate names they were sanitized to.
type Program struct {
	Source      string
	PredToLabel map[string]string
	LabelToPred map[string]string
}

// world is the single constant every flag predicate ranges over. Flags are
// propositions; Mangle predicates want at least one argument, so each flag F
// becomes `f(/w)`.
const world = "/w"

// Transpile renders rules and input stimuli as a Mangle program. Every flag
// becomes its own predicate so Mangle's predicate-level stratification
// matches flag-level inhibition structure.
func Transpile(rules []types.Rule, labelOf func(types.FlagID) string, inputs []string) *Program {
	p := &Program{
		PredToLabel: make(map[string]string),
		LabelToPred: make(map[string]string),
	}

	pred := func(label string) string {
		if existing, ok := p.LabelToPred[label]; ok {
			return existing
		}
		name := sanitize(label)
		// Distinct labels can sanitize to the same name; disambiguate.
		for base, i := name, 2; ; i++ {
			if _, taken := p.PredToLabel[name]; !taken {
				break
			}
			name = fmt.Sprintf("%s_%d", base, i)
		}
		p.PredToLabel[name] = label
		p.LabelToPred[label] = name
		return name
	}

	var facts, clauses strings.Builder

	for _, in := range inputs {
		fmt.Fprintf(&facts, "%s(%s).\n", pred(in), world)
	}

	for _, r := range rules {
		var body []string
		for _, t := range r.Triggers {
			body = append(body, fmt.Sprintf("%s(%s)", pred(labelOf(t)), world))
		}
		for _, f := range r.Forbids {
			body = append(body, fmt.Sprintf("!%s(%s)", pred(labelOf(f)), world))
		}
		fmt.Fprintf(&clauses, "%s(%s) :- %s.\n", pred(labelOf(r.Output)), world, strings.Join(body, ", "))
	}

	// Schema declarations come first so predicates that only ever appear
	// negated in a body (an inhibitor no rule derives) are still known to
	// the analyzer.
	var sb strings.Builder
	names := make([]string, 0, len(p.PredToLabel))
	for name := range p.PredToLabel {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "Decl %s(W).\n", name)
	}
	sb.WriteString(facts.String())
	sb.WriteString(clauses.String())

	p.Source = sb.String()
	return p
}

// sanitize turns a flag label into a valid Mangle predicate name.
func sanitize(label string) string {
	var sb strings.Builder
	sb.WriteString("f_")
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// Labels returns the labels mentioned by the program, sorted.
func (p *Program) Labels() []string {
	out := make([]string, 0, len(p.LabelToPred))
	for label := range p.LabelToPred {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
