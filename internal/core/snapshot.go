package core

import (
	"sort"

	"boilw/internal/types"
)

// Snapshot is a consistent copy of working memory plus the labels it
// references, taken under one read lock. The trace layer walks snapshots so
// rendering never races with ticking.
type Snapshot struct {
	Active map[types.FlagID]types.Source
	Labels map[types.FlagID]string
	Tick   int
}

// Snapshot copies the current working memory.
func (k *Kernel) Snapshot() Snapshot {
	k.mu.RLock()
	defer k.mu.RUnlock()

	snap := Snapshot{
		Active: make(map[types.FlagID]types.Source, len(k.active)),
		Labels: make(map[types.FlagID]string),
		Tick:   k.tick,
	}
	for id, src := range k.active {
		cp := src
		cp.Causes = append([]types.FlagID(nil), src.Causes...)
		snap.Active[id] = cp

		snap.Labels[id] = k.idToLabel[id]
		for _, c := range src.Causes {
			if _, ok := snap.Labels[c]; !ok {
				snap.Labels[c] = k.idToLabel[c]
			}
		}
	}
	return snap
}

// Derivations returns the label-level record of every derived activation in
// working memory, ordered by tick then output label. This feeds the episodic
// store, which is label-addressed.
func (k *Kernel) Derivations() []types.Derivation {
	snap := k.Snapshot()

	var out []types.Derivation
	for id, src := range snap.Active {
		if src.Kind != types.SourceDerived {
			continue
		}
		d := types.Derivation{
			Tick:   src.Tick,
			Output: snap.Labels[id],
			Rule:   src.Rule,
		}
		for _, c := range src.Causes {
			d.Causes = append(d.Causes, snap.Labels[c])
		}
		out = append(out, d)
	}
	sortDerivations(out)
	return out
}

// sortDerivations gives persistence and tests a stable order.
func sortDerivations(ds []types.Derivation) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Tick != ds[j].Tick {
			return ds[i].Tick < ds[j].Tick
		}
		return ds[i].Output < ds[j].Output
	})
}
