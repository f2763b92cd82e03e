package knowledge

import (
	"fmt"
	"strings"
)

// ValidationError describes one problem in a knowledge base.
type ValidationError struct {
	Source string // contributing file, if known
	Rule   string // rule name or synthesized description
	Msg    string
}

func (e ValidationError) Error() string {
	var sb strings.Builder
	if e.Source != "" {
		sb.WriteString(e.Source)
		sb.WriteString(": ")
	}
	if e.Rule != "" {
		fmt.Fprintf(&sb, "rule %q: ", e.Rule)
	}
	sb.WriteString(e.Msg)
	return sb.String()
}

// Validate checks the base for structural problems. It returns every problem
// found rather than stopping at the first, so `boilw check` can report all at
// once.
func (b *Base) Validate() []ValidationError {
	var errs []ValidationError

	add := func(i int, msg string) {
		var source string
		if i < len(b.Sources) {
			source = b.Sources[i]
		}
		errs = append(errs, ValidationError{
			Source: source,
			Rule:   b.Rules[i].describe(),
			Msg:    msg,
		})
	}

	seenNames := make(map[string]int)
	for i, r := range b.Rules {
		if r.Then == "" {
			add(i, "missing `then`")
		}
		if len(r.When) == 0 {
			add(i, "empty `when`")
		}
		for _, w := range r.When {
			if w == "" {
				add(i, "empty trigger label")
			}
			if w == r.Then {
				add(i, "triggers on its own output")
			}
		}
		for _, u := range r.Unless {
			if u == "" {
				add(i, "empty `unless` label")
			}
			if u == r.Then {
				add(i, "`unless` names its own output")
			}
		}
		if r.Name != "" {
			if prev, dup := seenNames[r.Name]; dup {
				add(i, fmt.Sprintf("duplicate rule name (first defined in rule %d)", prev+1))
			} else {
				seenNames[r.Name] = i
			}
		}
	}

	seenFlags := make(map[string]bool)
	for _, f := range b.Flags {
		if f.Label == "" {
			errs = append(errs, ValidationError{Msg: "flag with empty label"})
			continue
		}
		if seenFlags[f.Label] {
			errs = append(errs, ValidationError{Msg: fmt.Sprintf("duplicate flag declaration %q", f.Label)})
		}
		seenFlags[f.Label] = true
	}

	return errs
}
