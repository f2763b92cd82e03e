package datalog

import (
	"fmt"
	"sort"
	"strings"

	"boilw/internal/core"
	"boilw/internal/logging"
	"boilw/internal/types"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Divergence is a flag whose activation differs between the kernel's
// tick semantics and stratified Datalog evaluation.
type Divergence struct {
	Label      string
	Kernel     bool
	Stratified bool
}

// Report is the result of static analysis over a rule base.
type Report struct {
	Flags int
	Rules int

	// AnalysisErr holds the Mangle analyzer's rejection, if any. A
	// non-stratifiable base is reported here as well as in InhibitionCycles.
	AnalysisErr string

	// InhibitionCycles lists flag groups whose inhibition is cyclic.
	InhibitionCycles [][]string

	// IsolatedFlags are declared flags no rule mentions.
	IsolatedFlags []string

	// CrossChecked indicates stimuli were provided and stratified
	// evaluation ran; Divergences lists any differences found.
	CrossChecked bool
	Divergences  []Divergence
}

// Clean reports whether the analysis found nothing to flag.
func (r *Report) Clean() bool {
	return r.AnalysisErr == "" && len(r.InhibitionCycles) == 0 &&
		len(r.IsolatedFlags) == 0 && len(r.Divergences) == 0
}

// Check analyzes the kernel's rule base. When stimuli are given, the closure
// under kernel semantics is cross-checked against stratified evaluation of
// the transpiled program.
func Check(k *core.Kernel, stimuli []string) *Report {
	timer := logging.StartTimer(logging.CategoryCheck, "Check")
	defer timer.Stop()

	rules := k.Rules()
	flags := k.Flags()

	report := &Report{
		Flags:            len(flags),
		Rules:            len(rules),
		InhibitionCycles: FindInhibitionCycles(rules, k.Label),
		IsolatedFlags:    isolatedFlags(flags, rules),
	}

	program := Transpile(rules, k.Label, stimuli)
	derived, err := evalStratified(program)
	if err != nil {
		report.AnalysisErr = err.Error()
		logging.Check("mangle analysis rejected program: %v", err)
		return report
	}

	if len(stimuli) > 0 {
		report.CrossChecked = true
		report.Divergences = diffClosures(kernelClosure(k, stimuli), derived, program)
		if len(report.Divergences) > 0 {
			logging.Check("tick semantics diverge from stratified evaluation for %d flags",
				len(report.Divergences))
		}
	}

	return report
}

// evalStratified parses, analyzes, and evaluates the program to fixpoint,
// returning the set of predicates that hold.
func evalStratified(p *Program) (map[string]bool, error) {
	parsed, err := parse.Unit(strings.NewReader(p.Source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(parsed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze program: %w", err)
	}

	strata, predToStratum, err := analysis.Stratify(analysis.Program{
		EdbPredicates: programInfo.EdbPredicates,
		IdbPredicates: programInfo.IdbPredicates,
		Rules:         programInfo.Rules,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stratify program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	if _, err := engine.EvalStratifiedProgramWithStats(programInfo, strata, predToStratum, store); err != nil {
		return nil, fmt.Errorf("failed to evaluate program: %w", err)
	}

	holds := make(map[string]bool)
	for pred := range programInfo.Decls {
		found := false
		store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
			found = true
			return nil
		})
		if found {
			if label, ok := p.PredToLabel[pred.Symbol]; ok {
				holds[label] = true
			}
		}
	}
	return holds, nil
}

// kernelClosure runs the rule base over the stimuli on a scratch kernel so
// the caller's working memory is untouched.
func kernelClosure(k *core.Kernel, stimuli []string) map[string]bool {
	scratch := core.NewKernel()
	// Re-intern in ID order so rule IDs stay valid.
	for _, f := range k.Flags() {
		scratch.DefineFlag(f.Label, f.Description)
	}
	scratch.ReplaceRules(k.Rules())
	scratch.Inject(stimuli...)
	if _, err := scratch.Ponder(); err != nil {
		logging.Get(logging.CategoryCheck).Warn("kernel closure incomplete: %v", err)
	}

	active := make(map[string]bool)
	for _, id := range scratch.Active() {
		active[scratch.Label(id)] = true
	}
	return active
}

func diffClosures(kernel, stratified map[string]bool, p *Program) []Divergence {
	var out []Divergence
	for _, label := range p.Labels() {
		kt, st := kernel[label], stratified[label]
		if kt != st {
			out = append(out, Divergence{Label: label, Kernel: kt, Stratified: st})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func isolatedFlags(flags []types.Flag, rules []types.Rule) []string {
	used := make(map[types.FlagID]bool)
	for _, r := range rules {
		used[r.Output] = true
		for _, t := range r.Triggers {
			used[t] = true
		}
		for _, f := range r.Forbids {
			used[f] = true
		}
	}

	var out []string
	for _, f := range flags {
		if !used[f.ID] {
			out = append(out, f.Label)
		}
	}
	sort.Strings(out)
	return out
}
