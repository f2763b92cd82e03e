// Package core implements the boilw runtime kernel: the flag graph, working
// memory, and the deterministic tick-to-fixpoint inference loop.
//
// Logic lives in the topology: a rule fires when every trigger flag is active
// and no forbid flag is active, and activates its output flag. All rules that
// can fire in a tick commit together, then the next tick begins. There are no
// weights and no randomness; the same rule base and stimuli always produce
// the same closure and the same derivation sources.
package core

import (
	"fmt"
	"sort"
	"sync"

	"boilw/internal/logging"
	"boilw/internal/types"
)

// Default bounds, overridable via Options.
const (
	DefaultMaxTicks  = 1000
	DefaultFlagLimit = 100000
)

// Options configures a Kernel.
type Options struct {
	// MaxTicks aborts Ponder when a fixpoint is not reached.
	MaxTicks int
	// FlagLimit caps the number of active flags in working memory.
	FlagLimit int
}

// Kernel is the runtime core. It owns the symbol table (label <-> id), the
// static rule base, and the dynamic working memory of active flags with their
// activation sources.
type Kernel struct {
	mu sync.RWMutex

	// Symbol table
	labelToID    map[string]types.FlagID
	idToLabel    map[types.FlagID]string
	descriptions map[types.FlagID]string
	nextID       types.FlagID

	// Static memory: the rule base
	rules []types.Rule

	// Dynamic memory: active flags and why they are active
	active map[types.FlagID]types.Source

	// Bounds
	maxTicks  int
	flagLimit int

	// Counters
	tick       int // current tick number within the scene
	totalTicks int
	totalFired int
}

// NewKernel creates an empty kernel with default bounds.
func NewKernel() *Kernel {
	return NewKernelWithOptions(Options{})
}

// NewKernelWithOptions creates an empty kernel with explicit bounds.
func NewKernelWithOptions(opts Options) *Kernel {
	if opts.MaxTicks <= 0 {
		opts.MaxTicks = DefaultMaxTicks
	}
	if opts.FlagLimit <= 0 {
		opts.FlagLimit = DefaultFlagLimit
	}
	return &Kernel{
		labelToID:    make(map[string]types.FlagID),
		idToLabel:    make(map[types.FlagID]string),
		descriptions: make(map[types.FlagID]string),
		nextID:       1,
		active:       make(map[types.FlagID]types.Source),
		maxTicks:     opts.MaxTicks,
		flagLimit:    opts.FlagLimit,
	}
}

// Learn adds a rule to the rule base. Triggers must be non-empty and the
// output must be a known flag; a rule may not trigger on its own output.
func (k *Kernel) Learn(rule types.Rule) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.learnLocked(rule)
}

func (k *Kernel) learnLocked(rule types.Rule) error {
	if rule.Output == 0 {
		return fmt.Errorf("rule %q has no output flag", rule.Name)
	}
	if len(rule.Triggers) == 0 {
		return fmt.Errorf("rule %q has no triggers", ruleDesc(rule, k.idToLabel))
	}
	for _, t := range rule.Triggers {
		if t == rule.Output {
			return fmt.Errorf("rule %q triggers on its own output %q",
				rule.Name, k.idToLabel[rule.Output])
		}
	}
	k.rules = append(k.rules, rule)
	logging.KernelDebug("learned rule: %s", ruleDesc(rule, k.idToLabel))
	return nil
}

// LearnLabels is label-level sugar over Learn: it interns every referenced
// label and appends the rule.
func (k *Kernel) LearnLabels(name string, triggers, forbids []string, output string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	rule := types.Rule{Name: name, Output: k.defineLocked(output)}
	for _, t := range triggers {
		rule.Triggers = append(rule.Triggers, k.defineLocked(t))
	}
	for _, f := range forbids {
		rule.Forbids = append(rule.Forbids, k.defineLocked(f))
	}
	return k.learnLocked(rule)
}

// ReplaceRules swaps the entire rule base, used by hot reload. Working memory
// is untouched; call Reset to re-derive under the new base.
func (k *Kernel) ReplaceRules(rules []types.Rule) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rules = append([]types.Rule(nil), rules...)
	logging.Kernel("rule base replaced: %d rules", len(rules))
}

// Rules returns a copy of the rule base.
func (k *Kernel) Rules() []types.Rule {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]types.Rule(nil), k.rules...)
}

// Inject activates stimuli as inputs (axioms). Unknown labels are interned.
// Injecting an already-derived flag re-marks it as an input.
func (k *Kernel) Inject(labels ...string) []types.FlagID {
	k.mu.Lock()
	defer k.mu.Unlock()

	ids := make([]types.FlagID, 0, len(labels))
	for _, label := range labels {
		id := k.defineLocked(label)
		k.active[id] = types.Source{Kind: types.SourceInput}
		ids = append(ids, id)
		logging.KernelDebug("injected stimulus: %s (#%d)", label, id)
	}
	return ids
}

// Tick runs one inference cycle. All rules are scanned against the activation
// set as it stood at the start of the tick; every firing commits at the end.
// Returns the firings in rule order; an empty slice means fixpoint.
func (k *Kernel) Tick() ([]types.Firing, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickLocked()
}

func (k *Kernel) tickLocked() ([]types.Firing, error) {
	var firings []types.Firing

	for _, rule := range k.rules {
		// Known facts are not re-derived.
		if _, ok := k.active[rule.Output]; ok {
			continue
		}

		// AND gate: every trigger present.
		met := true
		for _, t := range rule.Triggers {
			if _, ok := k.active[t]; !ok {
				met = false
				break
			}
		}
		if !met {
			continue
		}

		// Inhibition: any forbid present blocks the rule.
		inhibited := false
		for _, f := range rule.Forbids {
			if _, ok := k.active[f]; ok {
				inhibited = true
				break
			}
		}
		if inhibited {
			continue
		}

		firings = append(firings, types.Firing{
			Tick:   k.tick + 1,
			Output: rule.Output,
			Causes: append([]types.FlagID(nil), rule.Triggers...),
			Rule:   rule.Name,
		})
	}

	if len(firings) == 0 {
		return nil, nil
	}

	if len(k.active)+len(firings) > k.flagLimit {
		return nil, fmt.Errorf("flag limit exceeded: %d active + %d firing > %d",
			len(k.active), len(firings), k.flagLimit)
	}

	// Commit. When several rules derive the same output in one tick, the last
	// one scanned provides the recorded source, matching scan order.
	k.tick++
	for _, f := range firings {
		k.active[f.Output] = types.Source{
			Kind:   types.SourceDerived,
			Causes: f.Causes,
			Rule:   f.Rule,
			Tick:   f.Tick,
		}
	}
	k.totalTicks++
	k.totalFired += len(firings)
	logging.KernelDebug("tick %d committed %d firings", k.tick, len(firings))

	return firings, nil
}

// Ponder ticks until a tick derives nothing, returning every firing in
// order. Errors if the rule base does not stabilize within MaxTicks.
func (k *Kernel) Ponder() ([]types.Firing, error) {
	timer := logging.StartTimer(logging.CategoryKernel, "Ponder")
	defer timer.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()

	var all []types.Firing
	for i := 0; i < k.maxTicks; i++ {
		firings, err := k.tickLocked()
		if err != nil {
			return all, err
		}
		if len(firings) == 0 {
			return all, nil
		}
		all = append(all, firings...)
	}
	return all, fmt.Errorf("no fixpoint after %d ticks", k.maxTicks)
}

// IsActive reports whether a flag is in working memory.
func (k *Kernel) IsActive(id types.FlagID) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.active[id]
	return ok
}

// SourceOf returns the activation source for an active flag.
func (k *Kernel) SourceOf(id types.FlagID) (types.Source, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	src, ok := k.active[id]
	return src, ok
}

// Active returns the active flag IDs in ascending order.
func (k *Kernel) Active() []types.FlagID {
	k.mu.RLock()
	defer k.mu.RUnlock()

	ids := make([]types.FlagID, 0, len(k.active))
	for id := range k.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset clears working memory. Rules and symbols are retained.
func (k *Kernel) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.active = make(map[types.FlagID]types.Source)
	k.tick = 0
	logging.Kernel("working memory cleared")
}

// Stats summarizes kernel activity since creation.
type Stats struct {
	Flags      int `json:"flags"`
	Rules      int `json:"rules"`
	Active     int `json:"active"`
	TotalTicks int `json:"total_ticks"`
	TotalFired int `json:"total_fired"`
}

// GetStats returns current kernel statistics.
func (k *Kernel) GetStats() Stats {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return Stats{
		Flags:      len(k.idToLabel),
		Rules:      len(k.rules),
		Active:     len(k.active),
		TotalTicks: k.totalTicks,
		TotalFired: k.totalFired,
	}
}

func ruleDesc(rule types.Rule, labels map[types.FlagID]string) string {
	name := rule.Name
	if name == "" {
		name = fmt.Sprintf("-> %s", labels[rule.Output])
	}
	return name
}
