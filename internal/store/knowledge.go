package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"boilw/internal/logging"
	"boilw/internal/types"
)

// SaveFlag upserts a flag declaration into the permanent tier.
func (s *LocalStore) SaveFlag(ctx context.Context, label, description string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("local store not initialized")
	}
	if label == "" {
		return fmt.Errorf("flag label must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flags (label, description)
		VALUES (?, ?)
		ON CONFLICT(label) DO UPDATE SET description = excluded.description
	`, label, description)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to save flag %q: %v", label, err)
		return fmt.Errorf("failed to save flag: %w", err)
	}
	logging.StoreDebug("Saved flag %q", label)
	return nil
}

// SaveRule upserts a rule, keyed by name. Triggers and forbids are stored as
// JSON arrays of labels so rules survive across kernel instances.
func (s *LocalStore) SaveRule(ctx context.Context, name string, triggers, forbids []string, output string) error {
	return s.saveRule(ctx, name, triggers, forbids, output, false)
}

// SaveLearnedRule is SaveRule with the learned marker set, used when an
// approved candidate is promoted into the permanent tier.
func (s *LocalStore) SaveLearnedRule(ctx context.Context, name string, triggers, forbids []string, output string) error {
	return s.saveRule(ctx, name, triggers, forbids, output, true)
}

func (s *LocalStore) saveRule(ctx context.Context, name string, triggers, forbids []string, output string, learned bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("local store not initialized")
	}
	if name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if output == "" {
		return fmt.Errorf("rule %q has no output", name)
	}
	if len(triggers) == 0 {
		return fmt.Errorf("rule %q has no triggers", name)
	}

	triggersJSON, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("failed to encode triggers: %w", err)
	}
	if forbids == nil {
		forbids = []string{}
	}
	forbidsJSON, err := json.Marshal(forbids)
	if err != nil {
		return fmt.Errorf("failed to encode forbids: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (name, triggers, forbids, output, learned)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			triggers = excluded.triggers,
			forbids = excluded.forbids,
			output = excluded.output,
			learned = excluded.learned
	`, name, string(triggersJSON), string(forbidsJSON), output, learned)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to save rule %q: %v", name, err)
		return fmt.Errorf("failed to save rule: %w", err)
	}
	logging.StoreDebug("Saved rule %q (learned=%v)", name, learned)
	return nil
}

// LoadRules returns all persisted rules, ordered by name.
func (s *LocalStore) LoadRules(ctx context.Context) ([]types.StoredRule, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("local store not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, triggers, forbids, output, learned
		FROM rules
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	defer rows.Close()

	var out []types.StoredRule
	for rows.Next() {
		var r types.StoredRule
		var triggersJSON, forbidsJSON string
		if err := rows.Scan(&r.Name, &triggersJSON, &forbidsJSON, &r.Output, &r.Learned); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal([]byte(triggersJSON), &r.Triggers); err != nil {
			return nil, fmt.Errorf("rule %q has corrupt triggers: %w", r.Name, err)
		}
		if err := json.Unmarshal([]byte(forbidsJSON), &r.Forbids); err != nil {
			return nil, fmt.Errorf("rule %q has corrupt forbids: %w", r.Name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadFlags returns all persisted flag declarations, ordered by label.
func (s *LocalStore) LoadFlags(ctx context.Context) ([]types.Flag, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("local store not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, description FROM flags ORDER BY label
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}
	defer rows.Close()

	var out []types.Flag
	for rows.Next() {
		var f types.Flag
		if err := rows.Scan(&f.Label, &f.Description); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteRule removes a rule by name. Deleting a missing rule is an error so
// callers can distinguish a typo from a no-op.
func (s *LocalStore) DeleteRule(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("local store not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rule %q not found", name)
	}
	logging.Store("Deleted rule %q", name)
	return nil
}

// Stats summarizes the permanent tier.
func (s *LocalStore) Stats(ctx context.Context) (types.KnowledgeStats, error) {
	if s == nil || s.db == nil {
		return types.KnowledgeStats{}, fmt.Errorf("local store not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats types.KnowledgeStats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM flags),
			(SELECT COUNT(*) FROM rules),
			(SELECT COUNT(*) FROM rules WHERE learned = 1)
	`)
	if err := row.Scan(&stats.Flags, &stats.Rules, &stats.LearnedRules); err != nil {
		if err == sql.ErrNoRows {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to read stats: %w", err)
	}
	return stats, nil
}
