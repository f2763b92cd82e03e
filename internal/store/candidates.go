package store

import (
	"context"
	"fmt"

	"boilw/internal/logging"
	"boilw/internal/types"
)

// RecordCandidate increments a promotion candidate's count or creates a new
// pending one, returning the updated count. Causes are normalized (sorted)
// so the same derivation observed in different orders counts once.
func (s *LocalStore) RecordCandidate(ctx context.Context, output string, causes []string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("local store not initialized")
	}
	if output == "" || len(causes) == 0 {
		return 0, nil
	}

	key := types.EncodeCauses(causes)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (output, causes, count, status)
		VALUES (?, ?, 1, 'pending')
		ON CONFLICT(output, causes) DO UPDATE SET
			count = count + 1,
			updated_at = CURRENT_TIMESTAMP
	`, output, key)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record candidate: %v", err)
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count FROM candidates WHERE output = ? AND causes = ?
	`, output, key).Scan(&count); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to read candidate count: %v", err)
		return 0, err
	}
	return count, nil
}

// ListCandidates returns candidates filtered by status (optional), most
// recently updated first.
func (s *LocalStore) ListCandidates(ctx context.Context, status string, limit int) ([]types.Candidate, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("local store not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, output, causes, count, status, created_at, updated_at
		FROM candidates
	`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY updated_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		var c types.Candidate
		if err := rows.Scan(&c.ID, &c.Output, &c.Causes, &c.Count, &c.Status,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCandidateStatus moves a candidate to approved or rejected.
func (s *LocalStore) SetCandidateStatus(ctx context.Context, id int64, status string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("local store not initialized")
	}
	switch status {
	case types.CandidatePending, types.CandidateApproved, types.CandidateRejected:
	default:
		return fmt.Errorf("invalid candidate status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE candidates SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("candidate %d not found", id)
	}
	logging.Memory("Candidate %d marked %s", id, status)
	return nil
}
