package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"boilw/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "boilw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFlagsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFlag(ctx, "Knife", "a sharp tool"))
	require.NoError(t, s.SaveFlag(ctx, "Apple", ""))
	// Upsert updates the description in place.
	require.NoError(t, s.SaveFlag(ctx, "Knife", "sharp"))

	flags, err := s.LoadFlags(ctx)
	require.NoError(t, err)
	require.Len(t, flags, 2)
	assert.Equal(t, "Apple", flags[0].Label)
	assert.Equal(t, "Knife", flags[1].Label)
	assert.Equal(t, "sharp", flags[1].Description)

	assert.Error(t, s.SaveFlag(ctx, "", "no label"))
}

func TestRulesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRule(ctx, "cutting", []string{"Knife", "Apple"}, nil, "Cut Apple"))
	require.NoError(t, s.SaveLearnedRule(ctx, "light", []string{"Switch On"}, []string{"Power Outage"}, "Light On"))

	rules, err := s.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "cutting", rules[0].Name)
	assert.Equal(t, []string{"Knife", "Apple"}, rules[0].Triggers)
	assert.Empty(t, rules[0].Forbids)
	assert.False(t, rules[0].Learned)

	assert.Equal(t, "light", rules[1].Name)
	assert.Equal(t, []string{"Power Outage"}, rules[1].Forbids)
	assert.True(t, rules[1].Learned)
}

func TestSaveRuleValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.SaveRule(ctx, "", []string{"A"}, nil, "B"))
	assert.Error(t, s.SaveRule(ctx, "r", nil, nil, "B"))
	assert.Error(t, s.SaveRule(ctx, "r", []string{"A"}, nil, ""))
}

func TestDeleteRule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRule(ctx, "cutting", []string{"Knife"}, nil, "Cut"))
	require.NoError(t, s.DeleteRule(ctx, "cutting"))

	rules, err := s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	assert.Error(t, s.DeleteRule(ctx, "cutting"), "deleting a missing rule reports an error")
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFlag(ctx, "Knife", ""))
	require.NoError(t, s.SaveRule(ctx, "r1", []string{"Knife"}, nil, "Cut"))
	require.NoError(t, s.SaveLearnedRule(ctx, "r2", []string{"Cut"}, nil, "Slices"))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.KnowledgeStats{Flags: 1, Rules: 2, LearnedRules: 1}, stats)
}

func TestSceneRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	scene := types.Scene{
		ID:        uuid.NewString(),
		StartedAt: started,
		EndedAt:   started.Add(2 * time.Second),
		Stimuli:   []string{"Knife", "Apple"},
		Events: []types.Derivation{
			{Tick: 1, Output: "Cut Apple", Causes: []string{"Knife", "Apple"}, Rule: "cutting"},
			{Tick: 2, Output: "Fruit Slices", Causes: []string{"Cut Apple"}, Rule: "slicing"},
		},
	}
	require.NoError(t, s.RecordScene(ctx, scene))

	got, err := s.GetScene(ctx, scene.ID)
	require.NoError(t, err)
	assert.Equal(t, scene.Stimuli, got.Stimuli)
	assert.True(t, scene.StartedAt.Equal(got.StartedAt))
	assert.True(t, scene.EndedAt.Equal(got.EndedAt))
	require.Len(t, got.Events, 2)
	assert.Equal(t, "Cut Apple", got.Events[0].Output)
	assert.Equal(t, []string{"Cut Apple"}, got.Events[1].Causes)

	_, err = s.GetScene(ctx, "missing")
	assert.Error(t, err)
}

func TestListScenesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordScene(ctx, types.Scene{
			ID:        uuid.NewString(),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Stimuli:   []string{"Stim"},
		}))
	}

	scenes, err := s.ListScenes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.True(t, scenes[0].StartedAt.After(scenes[1].StartedAt))
}

func TestSceneDerivationsGroupsByScene(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, id2 := uuid.NewString(), uuid.NewString()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordScene(ctx, types.Scene{
		ID: id1, StartedAt: base,
		Events: []types.Derivation{{Tick: 1, Output: "A", Causes: []string{"X"}}},
	}))
	require.NoError(t, s.RecordScene(ctx, types.Scene{
		ID: id2, StartedAt: base.Add(time.Minute),
		Events: []types.Derivation{
			{Tick: 1, Output: "A", Causes: []string{"X"}},
			{Tick: 2, Output: "B", Causes: []string{"A"}},
		},
	}))

	bySc, err := s.SceneDerivations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, bySc, 2)
	assert.Len(t, bySc[id1], 1)
	assert.Len(t, bySc[id2], 2)
}

func TestCandidateLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.RecordCandidate(ctx, "Fruit Slices", []string{"Cut Apple"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Cause order does not matter.
	n, err = s.RecordCandidate(ctx, "Alarm", []string{"Smoke", "Heat"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.RecordCandidate(ctx, "Alarm", []string{"Heat", "Smoke"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := s.ListCandidates(ctx, types.CandidatePending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	var alarm types.Candidate
	for _, c := range pending {
		if c.Output == "Alarm" {
			alarm = c
		}
	}
	require.NotZero(t, alarm.ID)
	assert.Equal(t, types.EncodeCauses([]string{"Smoke", "Heat"}), alarm.Causes)
	causes, err := types.DecodeCauses(alarm.Causes)
	require.NoError(t, err)
	assert.Equal(t, []string{"Heat", "Smoke"}, causes)

	require.NoError(t, s.SetCandidateStatus(ctx, alarm.ID, types.CandidateApproved))

	approved, err := s.ListCandidates(ctx, types.CandidateApproved, 0)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "Alarm", approved[0].Output)

	assert.Error(t, s.SetCandidateStatus(ctx, alarm.ID, "bogus"))
	assert.Error(t, s.SetCandidateStatus(ctx, 9999, types.CandidateRejected))
}

func TestRecordCandidateIgnoresEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.RecordCandidate(ctx, "", []string{"X"})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.RecordCandidate(ctx, "X", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boilw.db")
	ctx := context.Background()

	s, err := NewLocalStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRule(ctx, "cutting", []string{"Knife"}, nil, "Cut"))
	require.NoError(t, s.Close())

	s2, err := NewLocalStore(path)
	require.NoError(t, err)
	defer s2.Close()

	rules, err := s2.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "cutting", rules[0].Name)
}
