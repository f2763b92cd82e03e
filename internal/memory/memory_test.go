package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"boilw/internal/store"
	"boilw/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.LocalStore {
	t.Helper()
	s, err := store.NewLocalStore(filepath.Join(t.TempDir(), "boilw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func recordScene(t *testing.T, r *Recorder, stimuli []string, events ...types.Derivation) types.Scene {
	t.Helper()
	r.Begin()
	r.Observe(stimuli...)
	r.Note(events...)
	scene, err := r.End(context.Background())
	require.NoError(t, err)
	return scene
}

func TestRecorderLifecycle(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	ctx := context.Background()

	assert.Empty(t, r.SceneID(), "no scene open initially")

	id := r.Begin()
	assert.Equal(t, id, r.SceneID())
	r.Observe("Knife", "Apple")
	r.Note(types.Derivation{Tick: 1, Output: "Cut Apple", Causes: []string{"Knife", "Apple"}, Rule: "cutting"})

	scene, err := r.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, scene.ID)
	assert.False(t, scene.EndedAt.Before(scene.StartedAt))
	assert.Empty(t, r.SceneID(), "End closes the scene")

	got, err := s.GetScene(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Knife", "Apple"}, got.Stimuli)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "Cut Apple", got.Events[0].Output)

	_, err = r.End(ctx)
	assert.Error(t, err, "double End reports no open scene")
}

func TestObserveWithoutSceneIsNoop(t *testing.T) {
	r := NewRecorder(newTestStore(t))
	r.Observe("Knife")
	r.Note(types.Derivation{Output: "X"})
	assert.Empty(t, r.SceneID())
}

func TestBeginDiscardsUnfinishedScene(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	ctx := context.Background()

	first := r.Begin()
	r.Observe("Lost")
	second := r.Begin()
	assert.NotEqual(t, first, second)

	_, err := r.End(ctx)
	require.NoError(t, err)

	scenes, err := s.ListScenes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, scenes, 1, "discarded scene is never persisted")
	assert.Equal(t, second, scenes[0].ID)
}

func TestFiringsToDerivations(t *testing.T) {
	labels := map[types.FlagID]string{1: "Knife", 2: "Apple", 3: "Cut Apple"}
	labelOf := func(id types.FlagID) string { return labels[id] }

	ds := FiringsToDerivations([]types.Firing{
		{Tick: 1, Output: 3, Causes: []types.FlagID{1, 2}, Rule: "cutting"},
	}, labelOf)

	require.Len(t, ds, 1)
	assert.Equal(t, "Cut Apple", ds[0].Output)
	assert.Equal(t, []string{"Knife", "Apple"}, ds[0].Causes)
	assert.Equal(t, "cutting", ds[0].Rule)
}

func TestConsolidateStagesRecurringDerivations(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	ctx := context.Background()

	cut := types.Derivation{Tick: 1, Output: "Cut Apple", Causes: []string{"Apple", "Knife"}, Rule: "cutting"}
	rare := types.Derivation{Tick: 1, Output: "Alarm", Causes: []string{"Smoke"}, Rule: "alarm"}

	recordScene(t, r, []string{"Knife", "Apple"}, cut)
	recordScene(t, r, []string{"Knife", "Apple"}, cut)
	recordScene(t, r, []string{"Knife", "Apple", "Smoke"}, cut, rare)

	c := NewConsolidator(s, s, 3)
	report, err := c.Consolidate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.ScenesScanned)
	assert.Equal(t, 1, report.Recurring, "only the derivation seen in 3 distinct scenes is staged")
	require.Len(t, report.Staged, 1)
	assert.Equal(t, "Cut Apple", report.Staged[0].Output)

	pending, err := s.ListCandidates(ctx, types.CandidatePending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	causes, err := types.DecodeCauses(pending[0].Causes)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple", "Knife"}, causes)
}

func TestConsolidateCountsDistinctScenesNotOccurrences(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	ctx := context.Background()

	// Three occurrences inside one scene must not reach a threshold of 2.
	d := types.Derivation{Tick: 1, Output: "Echo", Causes: []string{"Ping"}}
	recordScene(t, r, []string{"Ping"}, d, d, d)

	c := NewConsolidator(s, s, 2)
	report, err := c.Consolidate(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Recurring)
}

func TestPromoteWritesLearnedRule(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	ctx := context.Background()

	d := types.Derivation{Tick: 1, Output: "Fruit Slices", Causes: []string{"Cut Apple"}, Rule: "slicing"}
	recordScene(t, r, []string{"Cut Apple"}, d)
	recordScene(t, r, []string{"Cut Apple"}, d)

	c := NewConsolidator(s, s, 2)
	_, err := c.Consolidate(ctx)
	require.NoError(t, err)

	pending, err := s.ListCandidates(ctx, types.CandidatePending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	rule, err := c.Promote(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "learned-fruit-slices", rule.Name)
	assert.Equal(t, []string{"Cut Apple"}, rule.Triggers)
	assert.True(t, rule.Learned)

	rules, err := s.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Learned)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LearnedRules)
	assert.Equal(t, 2, stats.Flags, "output and trigger flags are declared")

	// A promoted candidate cannot be promoted again.
	_, err = c.Promote(ctx, pending[0].ID)
	assert.Error(t, err)
}

func TestPromoteKeepsCommaLabelsIntact(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	ctx := context.Background()

	d := types.Derivation{
		Tick:   1,
		Output: "Evacuate",
		Causes: []string{"Alarm, Armed", "Smoke"},
		Rule:   "evac",
	}
	recordScene(t, r, []string{"Alarm, Armed", "Smoke"}, d)
	recordScene(t, r, []string{"Alarm, Armed", "Smoke"}, d)

	c := NewConsolidator(s, s, 2)
	_, err := c.Consolidate(ctx)
	require.NoError(t, err)

	pending, err := s.ListCandidates(ctx, types.CandidatePending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	rule, err := c.Promote(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alarm, Armed", "Smoke"}, rule.Triggers)

	rules, err := s.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"Alarm, Armed", "Smoke"}, rules[0].Triggers)
}

func TestRejectCandidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordCandidate(ctx, "Noise", []string{"Static"})
	require.NoError(t, err)
	pending, err := s.ListCandidates(ctx, types.CandidatePending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	c := NewConsolidator(s, s, 1)
	require.NoError(t, c.Reject(ctx, pending[0].ID))

	rejected, err := s.ListCandidates(ctx, types.CandidateRejected, 0)
	require.NoError(t, err)
	assert.Len(t, rejected, 1)

	assert.Error(t, c.Reject(ctx, pending[0].ID), "already rejected")
	assert.Error(t, c.Reject(ctx, 9999))

	rules, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules, "rejection never touches the permanent tier")
}

func TestConsolidateSceneLimit(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s)
	ctx := context.Background()

	d := types.Derivation{Tick: 1, Output: "Out", Causes: []string{"In"}}
	for i := 0; i < 5; i++ {
		recordScene(t, r, []string{"In"}, d)
		time.Sleep(time.Millisecond)
	}

	c := NewConsolidator(s, s, 3)
	c.SceneLimit = 2
	report, err := c.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ScenesScanned)
	assert.Zero(t, report.Recurring, "threshold exceeds the scanned window")
}
