package store

import (
	"database/sql"
	"fmt"

	"boilw/internal/logging"
)

// initialize creates the base schema. CREATE TABLE IF NOT EXISTS keeps this
// idempotent; column additions for existing databases live in
// pendingMigrations.
func (s *LocalStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS flags (
			label TEXT PRIMARY KEY,
			description TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			name TEXT PRIMARY KEY,
			triggers TEXT NOT NULL,
			forbids TEXT DEFAULT '[]',
			output TEXT NOT NULL,
			learned INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS scenes (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			stimuli TEXT DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS scene_derivations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scene_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			output TEXT NOT NULL,
			causes TEXT DEFAULT '[]',
			rule TEXT DEFAULT '',
			FOREIGN KEY (scene_id) REFERENCES scenes(id)
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			output TEXT NOT NULL,
			causes TEXT NOT NULL,
			count INTEGER DEFAULT 1,
			status TEXT DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(output, causes)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scene_derivations_scene
			ON scene_derivations(scene_id)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_status
			ON candidates(status)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Migration defines an additive column migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists column additions for databases created before the
// column existed. Base tables come from initialize().
var pendingMigrations = []Migration{
	// Learned flag on rules (added when candidate promotion landed)
	{"rules", "learned", "INTEGER DEFAULT 0"},
	// Scene end times (scenes used to be open-ended)
	{"scenes", "ended_at", "DATETIME"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			// Column may already exist in a different form; don't fail.
			logging.Get(logging.CategoryStore).Warn("Migration failed: %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}
	if applied > 0 {
		logging.Store("Applied %d schema migrations", applied)
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
