// Package mind is the public face of boilw: a deterministic flag kernel
// with labeled rules, stimulus injection, fixpoint inference, and cause
// traces. Everything heavier (persistence, hot reload, plugins) lives in
// the CLI; library users get the logic core alone.
package mind

import (
	"fmt"

	"boilw/internal/core"
	"boilw/internal/knowledge"
	"boilw/internal/trace"
	"boilw/internal/types"
)

// Mind wraps a kernel behind a label-addressed API.
type Mind struct {
	kernel *core.Kernel
	nextID int
}

// Option configures a Mind.
type Option func(*options)

type options struct {
	maxTicks  int
	flagLimit int
}

// WithMaxTicks bounds Ponder's tick count.
func WithMaxTicks(n int) Option {
	return func(o *options) { o.maxTicks = n }
}

// WithFlagLimit bounds working memory size.
func WithFlagLimit(n int) Option {
	return func(o *options) { o.flagLimit = n }
}

// New returns an empty Mind.
func New(opts ...Option) *Mind {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Mind{kernel: core.NewKernelWithOptions(core.Options{
		MaxTicks:  o.maxTicks,
		FlagLimit: o.flagLimit,
	})}
}

// Define interns a flag with a description, creating it if needed.
func (m *Mind) Define(label, description string) {
	m.kernel.DefineFlag(label, description)
}

// Learn adds a rule: all triggers active implies output. Labels are
// interned on first use.
func (m *Mind) Learn(triggers []string, output string) error {
	return m.LearnRule(triggers, nil, output)
}

// LearnRule adds a rule with inhibition: triggers fire output unless any
// forbid flag is active.
func (m *Mind) LearnRule(triggers, forbids []string, output string) error {
	m.nextID++
	name := fmt.Sprintf("rule-%d", m.nextID)
	return m.kernel.LearnLabels(name, triggers, forbids, output)
}

// LoadKnowledge parses a YAML knowledge file or directory and compiles it
// into the rule base.
func (m *Mind) LoadKnowledge(path string) error {
	base, err := knowledge.LoadPath(path)
	if err != nil {
		return err
	}
	return base.Compile(m.kernel)
}

// Inject activates stimuli as inputs.
func (m *Mind) Inject(labels ...string) {
	m.kernel.Inject(labels...)
}

// Tick runs one inference cycle. The returned derivations are the facts it
// committed; an empty result means the mind is stable.
func (m *Mind) Tick() ([]types.Derivation, error) {
	firings, err := m.kernel.Tick()
	if err != nil {
		return nil, err
	}
	return m.derivations(firings), nil
}

// Ponder ticks until no rule can fire, returning every derivation in
// order.
func (m *Mind) Ponder() ([]types.Derivation, error) {
	firings, err := m.kernel.Ponder()
	if err != nil {
		return nil, err
	}
	return m.derivations(firings), nil
}

// IsActive reports whether a flag is in working memory.
func (m *Mind) IsActive(label string) bool {
	id, ok := m.kernel.Lookup(label)
	return ok && m.kernel.IsActive(id)
}

// Active returns all active flag labels, sorted by activation id.
func (m *Mind) Active() []string {
	ids := m.kernel.Active()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.kernel.Label(id))
	}
	return out
}

// Trace returns the cause tree explaining why a flag is active.
func (m *Mind) Trace(label string) (*trace.Node, error) {
	return trace.BuildByLabel(m.kernel, label)
}

// Reset clears working memory. Rules and flag definitions survive.
func (m *Mind) Reset() {
	m.kernel.Reset()
}

// Kernel exposes the underlying kernel for callers that need the full
// surface (the CLI does).
func (m *Mind) Kernel() *core.Kernel {
	return m.kernel
}

func (m *Mind) derivations(firings []types.Firing) []types.Derivation {
	out := make([]types.Derivation, 0, len(firings))
	for _, f := range firings {
		d := types.Derivation{Tick: f.Tick, Output: m.kernel.Label(f.Output), Rule: f.Rule}
		for _, c := range f.Causes {
			d.Causes = append(d.Causes, m.kernel.Label(c))
		}
		out = append(out, d)
	}
	return out
}
