package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"boilw/internal/logging"
	"boilw/internal/types"
)

// RecordScene persists a finished scene and its derivations in one
// transaction.
func (s *LocalStore) RecordScene(ctx context.Context, scene types.Scene) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("local store not initialized")
	}
	if scene.ID == "" {
		return fmt.Errorf("scene has no id")
	}

	stimuliJSON, err := json.Marshal(scene.Stimuli)
	if err != nil {
		return fmt.Errorf("failed to encode stimuli: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var endedAt interface{}
	if !scene.EndedAt.IsZero() {
		endedAt = scene.EndedAt.UTC().Format(time.RFC3339Nano)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scenes (id, started_at, ended_at, stimuli)
		VALUES (?, ?, ?, ?)
	`, scene.ID, scene.StartedAt.UTC().Format(time.RFC3339Nano), endedAt, string(stimuliJSON)); err != nil {
		return fmt.Errorf("failed to insert scene: %w", err)
	}

	for _, d := range scene.Events {
		causesJSON, err := json.Marshal(d.Causes)
		if err != nil {
			return fmt.Errorf("failed to encode causes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scene_derivations (scene_id, tick, output, causes, rule)
			VALUES (?, ?, ?, ?, ?)
		`, scene.ID, d.Tick, d.Output, string(causesJSON), d.Rule); err != nil {
			return fmt.Errorf("failed to insert derivation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scene: %w", err)
	}
	logging.Memory("Recorded scene %s (%d stimuli, %d derivations)",
		scene.ID, len(scene.Stimuli), len(scene.Events))
	return nil
}

// ListScenes returns the most recent scenes, newest first, without their
// derivations. Use GetScene for the full record.
func (s *LocalStore) ListScenes(ctx context.Context, limit int) ([]types.Scene, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("local store not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, started_at, ended_at, stimuli FROM scenes ORDER BY started_at DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	var out []types.Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, scene)
	}
	return out, rows.Err()
}

// GetScene returns one scene with its derivations.
func (s *LocalStore) GetScene(ctx context.Context, id string) (types.Scene, error) {
	if s == nil || s.db == nil {
		return types.Scene{}, fmt.Errorf("local store not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, ended_at, stimuli FROM scenes WHERE id = ?", id)
	if err != nil {
		return types.Scene{}, fmt.Errorf("failed to get scene: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.Scene{}, err
		}
		return types.Scene{}, fmt.Errorf("scene %q not found", id)
	}
	scene, err := scanScene(rows)
	if err != nil {
		return types.Scene{}, err
	}
	rows.Close()

	drows, err := s.db.QueryContext(ctx, `
		SELECT tick, output, causes, rule
		FROM scene_derivations
		WHERE scene_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return types.Scene{}, fmt.Errorf("failed to load derivations: %w", err)
	}
	defer drows.Close()

	for drows.Next() {
		var d types.Derivation
		var causesJSON string
		if err := drows.Scan(&d.Tick, &d.Output, &causesJSON, &d.Rule); err != nil {
			return types.Scene{}, fmt.Errorf("failed to scan derivation: %w", err)
		}
		if err := json.Unmarshal([]byte(causesJSON), &d.Causes); err != nil {
			return types.Scene{}, fmt.Errorf("scene %q has corrupt causes: %w", id, err)
		}
		scene.Events = append(scene.Events, d)
	}
	return scene, drows.Err()
}

// SceneDerivations streams every derivation in the episodic tier grouped by
// scene, newest scene first. Consolidation walks this to find recurring
// derivations.
func (s *LocalStore) SceneDerivations(ctx context.Context, sceneLimit int) (map[string][]types.Derivation, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("local store not initialized")
	}

	scenes, err := s.ListScenes(ctx, sceneLimit)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]types.Derivation, len(scenes))
	for _, scene := range scenes {
		rows, err := s.db.QueryContext(ctx, `
			SELECT tick, output, causes, rule
			FROM scene_derivations
			WHERE scene_id = ?
			ORDER BY id
		`, scene.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load derivations: %w", err)
		}
		var ds []types.Derivation
		for rows.Next() {
			var d types.Derivation
			var causesJSON string
			if err := rows.Scan(&d.Tick, &d.Output, &causesJSON, &d.Rule); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan derivation: %w", err)
			}
			if err := json.Unmarshal([]byte(causesJSON), &d.Causes); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scene %q has corrupt causes: %w", scene.ID, err)
			}
			ds = append(ds, d)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		out[scene.ID] = ds
	}
	return out, nil
}

func scanScene(rows *sql.Rows) (types.Scene, error) {
	var scene types.Scene
	var startedAt string
	var endedAt sql.NullString
	var stimuliJSON string
	if err := rows.Scan(&scene.ID, &startedAt, &endedAt, &stimuliJSON); err != nil {
		return types.Scene{}, fmt.Errorf("failed to scan scene: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return types.Scene{}, fmt.Errorf("scene %q has corrupt start time: %w", scene.ID, err)
	}
	scene.StartedAt = t

	if endedAt.Valid && endedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return types.Scene{}, fmt.Errorf("scene %q has corrupt end time: %w", scene.ID, err)
		}
		scene.EndedAt = t
	}

	if err := json.Unmarshal([]byte(stimuliJSON), &scene.Stimuli); err != nil {
		return types.Scene{}, fmt.Errorf("scene %q has corrupt stimuli: %w", scene.ID, err)
	}
	return scene, nil
}
