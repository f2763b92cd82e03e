// Package types provides shared type definitions used across boilw packages.
// This package exists to break import cycles between core, memory, and store.
// Types in this package should be foundational data structures with no complex
// dependencies.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FlagID identifies an interned flag. IDs are allocated from 1; 0 is never a
// valid flag.
type FlagID uint32

// Flag is the atomic symbolic unit: a label interned to an ID, optionally
// carrying a human description from the knowledge base.
type Flag struct {
	ID          FlagID `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Rule is a logic link in the flag graph: if every trigger is active and no
// forbid is active, the output activates. OR is expressed as multiple rules
// sharing an output.
type Rule struct {
	Name     string   `json:"name,omitempty"`
	Triggers []FlagID `json:"triggers"`
	Forbids  []FlagID `json:"forbids,omitempty"`
	Output   FlagID   `json:"output"`
}

// SourceKind classifies how an active flag entered working memory.
type SourceKind int

const (
	// SourceInput marks a stimulus injected from outside (an axiom).
	SourceInput SourceKind = iota
	// SourceDerived marks a flag activated by a rule firing.
	SourceDerived
)

func (k SourceKind) String() string {
	switch k {
	case SourceInput:
		return "input"
	case SourceDerived:
		return "derived"
	default:
		return fmt.Sprintf("source(%d)", int(k))
	}
}

// Source records why a flag is active. For derived flags, Causes holds the
// trigger set of the rule that fired and Rule its optional name.
type Source struct {
	Kind   SourceKind `json:"kind"`
	Causes []FlagID   `json:"causes,omitempty"`
	Rule   string     `json:"rule,omitempty"`
	Tick   int        `json:"tick,omitempty"`
}

// Firing is one rule application committed during a tick.
type Firing struct {
	Tick   int      `json:"tick"`
	Output FlagID   `json:"output"`
	Causes []FlagID `json:"causes"`
	Rule   string   `json:"rule,omitempty"`
}

// Derivation is a label-level firing record, used by the episodic store and
// consolidation where IDs from different kernel instances must not be mixed.
type Derivation struct {
	Tick   int      `json:"tick"`
	Output string   `json:"output"`
	Causes []string `json:"causes"`
	Rule   string   `json:"rule,omitempty"`
}

// Key returns a stable identity for a derivation, independent of cause order.
func (d Derivation) Key() string {
	causes := append([]string(nil), d.Causes...)
	sort.Strings(causes)
	return strings.Join(causes, "+") + "->" + d.Output
}

// Scene is one episodic memory unit: a bounded run of stimuli and the
// derivations they produced.
type Scene struct {
	ID        string       `json:"id"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at,omitempty"`
	Stimuli   []string     `json:"stimuli"`
	Events    []Derivation `json:"events"`
}

// Candidate is a staged promotion candidate: a derivation observed across
// enough distinct scenes to be considered for the permanent knowledge base.
type Candidate struct {
	ID        int64  `json:"id"`
	Output    string `json:"output"`
	Causes    string `json:"causes"` // EncodeCauses form
	Count     int    `json:"count"`
	Status    string `json:"status"` // pending, approved, rejected
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// EncodeCauses normalizes a cause set into the form Candidate.Causes holds:
// a JSON array of the labels in sorted order. Sorting makes the encoding
// canonical, so the same derivation observed in different orders maps to one
// candidate, and JSON keeps labels intact no matter what characters they
// contain.
func EncodeCauses(causes []string) string {
	sorted := append([]string(nil), causes...)
	sort.Strings(sorted)
	b, _ := json.Marshal(sorted)
	return string(b)
}

// DecodeCauses is the inverse of EncodeCauses.
func DecodeCauses(stored string) ([]string, error) {
	if stored == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(stored), &out); err != nil {
		return nil, fmt.Errorf("failed to decode causes %q: %w", stored, err)
	}
	return out, nil
}

// Candidate statuses.
const (
	CandidatePending  = "pending"
	CandidateApproved = "approved"
	CandidateRejected = "rejected"
)
