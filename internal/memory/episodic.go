// Package memory manages the episodic tier: recording scenes as they happen
// and consolidating recurring derivations into promotion candidates for the
// permanent knowledge base.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boilw/internal/logging"
	"boilw/internal/types"

	"github.com/google/uuid"
)

// Recorder accumulates one scene at a time and persists it on End. Scenes
// are append-only: once recorded they are never rewritten.
type Recorder struct {
	store types.EpisodicStore

	mu    sync.Mutex
	scene *types.Scene
}

// NewRecorder returns a Recorder writing to the given episodic store.
func NewRecorder(store types.EpisodicStore) *Recorder {
	return &Recorder{store: store}
}

// Begin opens a new scene and returns its id. An open scene is discarded.
func (r *Recorder) Begin() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scene != nil {
		logging.Memory("Discarding unfinished scene %s", r.scene.ID)
	}
	r.scene = &types.Scene{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logging.MemoryDebug("Scene %s started", r.scene.ID)
	return r.scene.ID
}

// Observe appends stimuli to the open scene. Without an open scene it is a
// no-op so callers don't have to special-case recording being off.
func (r *Recorder) Observe(labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scene == nil {
		return
	}
	r.scene.Stimuli = append(r.scene.Stimuli, labels...)
}

// Note appends derivations to the open scene.
func (r *Recorder) Note(ds ...types.Derivation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scene == nil {
		return
	}
	r.scene.Events = append(r.scene.Events, ds...)
}

// SceneID returns the open scene's id, or "" when none is open.
func (r *Recorder) SceneID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scene == nil {
		return ""
	}
	return r.scene.ID
}

// End closes the open scene, persists it, and returns it.
func (r *Recorder) End(ctx context.Context) (types.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scene == nil {
		return types.Scene{}, fmt.Errorf("no open scene")
	}
	scene := *r.scene
	scene.EndedAt = time.Now().UTC()
	r.scene = nil

	if err := r.store.RecordScene(ctx, scene); err != nil {
		return types.Scene{}, fmt.Errorf("failed to record scene: %w", err)
	}
	return scene, nil
}

// FiringsToDerivations converts kernel firings to label-addressed
// derivations using the given resolver.
func FiringsToDerivations(firings []types.Firing, labelOf func(types.FlagID) string) []types.Derivation {
	out := make([]types.Derivation, 0, len(firings))
	for _, f := range firings {
		d := types.Derivation{
			Tick:   f.Tick,
			Output: labelOf(f.Output),
			Rule:   f.Rule,
		}
		for _, c := range f.Causes {
			d.Causes = append(d.Causes, labelOf(c))
		}
		out = append(out, d)
	}
	return out
}
