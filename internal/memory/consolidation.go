package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"boilw/internal/logging"
	"boilw/internal/types"

	"golang.org/x/sync/errgroup"
)

// sceneFetchers caps concurrent GetScene calls during consolidation.
const sceneFetchers = 4

// Consolidator bridges the tiers: it scans recent scenes for derivations
// that recur across enough distinct scenes and stages them as promotion
// candidates. Approved candidates become learned rules in the permanent
// tier.
type Consolidator struct {
	episodic  types.EpisodicStore
	knowledge types.KnowledgeStore

	// Threshold is the number of distinct scenes a derivation must recur
	// in before it is staged.
	Threshold int
	// SceneLimit bounds how many recent scenes a pass scans; 0 means all.
	SceneLimit int
}

// NewConsolidator wires a consolidator between the two stores.
func NewConsolidator(episodic types.EpisodicStore, knowledge types.KnowledgeStore, threshold int) *Consolidator {
	if threshold < 1 {
		threshold = 1
	}
	return &Consolidator{episodic: episodic, knowledge: knowledge, Threshold: threshold}
}

// Report summarizes one consolidation pass.
type Report struct {
	ScenesScanned int
	Recurring     int
	Staged        []types.Candidate
}

// Consolidate runs one pass: scan scenes, count how many distinct scenes
// each derivation appears in, and stage every derivation at or above the
// threshold as a pending candidate.
func (c *Consolidator) Consolidate(ctx context.Context) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "Consolidate")
	defer timer.Stop()

	scenes, err := c.episodic.ListScenes(ctx, c.SceneLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}

	// Fetch scene bodies concurrently; counting stays under one mutex.
	type entry struct {
		output string
		causes []string
		scenes map[string]bool
	}
	var mu sync.Mutex
	counts := make(map[string]*entry)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sceneFetchers)
	for _, sc := range scenes {
		id := sc.ID
		g.Go(func() error {
			full, err := c.episodic.GetScene(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to fetch scene %s: %w", id, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, d := range full.Events {
				key := d.Key()
				e, ok := counts[key]
				if !ok {
					e = &entry{output: d.Output, causes: d.Causes, scenes: make(map[string]bool)}
					counts[key] = e
				}
				e.scenes[id] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{ScenesScanned: len(scenes)}
	for _, e := range counts {
		if len(e.scenes) < c.Threshold {
			continue
		}
		report.Recurring++
		count, err := c.episodic.RecordCandidate(ctx, e.output, e.causes)
		if err != nil {
			return nil, fmt.Errorf("failed to stage candidate for %q: %w", e.output, err)
		}
		report.Staged = append(report.Staged, types.Candidate{
			Output: e.output,
			Causes: types.EncodeCauses(e.causes),
			Count:  count,
			Status: types.CandidatePending,
		})
	}

	logging.Memory("Consolidation: %d scenes scanned, %d recurring derivations staged",
		report.ScenesScanned, report.Recurring)
	return report, nil
}

// Promote approves a pending candidate and writes it into the permanent
// tier as a learned rule. The returned rule is what was saved.
func (c *Consolidator) Promote(ctx context.Context, id int64) (types.StoredRule, error) {
	cand, err := c.findCandidate(ctx, id)
	if err != nil {
		return types.StoredRule{}, err
	}
	if cand.Status != types.CandidatePending {
		return types.StoredRule{}, fmt.Errorf("candidate %d is %s, not pending", id, cand.Status)
	}

	triggers, err := types.DecodeCauses(cand.Causes)
	if err != nil {
		return types.StoredRule{}, fmt.Errorf("candidate %d: %w", id, err)
	}
	rule := types.StoredRule{
		Name:     learnedRuleName(cand.Output),
		Triggers: triggers,
		Output:   cand.Output,
		Learned:  true,
	}

	if err := c.knowledge.SaveFlag(ctx, cand.Output, ""); err != nil {
		return types.StoredRule{}, err
	}
	for _, t := range triggers {
		if err := c.knowledge.SaveFlag(ctx, t, ""); err != nil {
			return types.StoredRule{}, err
		}
	}
	if err := c.knowledge.SaveLearnedRule(ctx, rule.Name, rule.Triggers, nil, rule.Output); err != nil {
		return types.StoredRule{}, fmt.Errorf("failed to save learned rule: %w", err)
	}
	if err := c.episodic.SetCandidateStatus(ctx, id, types.CandidateApproved); err != nil {
		return types.StoredRule{}, err
	}

	logging.Memory("Promoted candidate %d to learned rule %q", id, rule.Name)
	return rule, nil
}

// Reject marks a pending candidate rejected so later passes stop
// re-surfacing it.
func (c *Consolidator) Reject(ctx context.Context, id int64) error {
	cand, err := c.findCandidate(ctx, id)
	if err != nil {
		return err
	}
	if cand.Status != types.CandidatePending {
		return fmt.Errorf("candidate %d is %s, not pending", id, cand.Status)
	}
	return c.episodic.SetCandidateStatus(ctx, id, types.CandidateRejected)
}

func (c *Consolidator) findCandidate(ctx context.Context, id int64) (types.Candidate, error) {
	all, err := c.episodic.ListCandidates(ctx, "", 0)
	if err != nil {
		return types.Candidate{}, fmt.Errorf("failed to list candidates: %w", err)
	}
	for _, cand := range all {
		if cand.ID == id {
			return cand, nil
		}
	}
	return types.Candidate{}, fmt.Errorf("candidate %d not found", id)
}

// learnedRuleName derives a stable rule name from the candidate's output.
func learnedRuleName(output string) string {
	slug := strings.ToLower(output)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	return "learned-" + strings.Trim(slug, "-")
}
