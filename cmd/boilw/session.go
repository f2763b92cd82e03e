package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"boilw/internal/config"
	"boilw/internal/core"
	"boilw/internal/knowledge"
	"boilw/internal/logging"
	"boilw/internal/plugin"
	"boilw/internal/store"

	"go.uber.org/zap"
)

// session bundles everything a command needs: config, a compiled kernel,
// and (lazily) the local store.
type session struct {
	cfg    *config.Config
	kernel *core.Kernel

	local *store.LocalStore
}

// newSession loads config, compiles the knowledge base into a fresh kernel,
// applies plugins, and folds in persisted learned rules.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &session{
		cfg: cfg,
		kernel: core.NewKernelWithOptions(core.Options{
			MaxTicks:  cfg.Kernel.MaxTicks,
			FlagLimit: cfg.Kernel.FlagLimit,
		}),
	}

	base, err := s.loadBase(ctx)
	if err != nil {
		return nil, err
	}
	if err := base.Compile(s.kernel); err != nil {
		return nil, fmt.Errorf("failed to compile knowledge: %w", err)
	}

	if err := s.loadLearned(ctx); err != nil {
		return nil, err
	}

	logger.Debug("session ready",
		zap.Int("flags", len(s.kernel.Flags())),
		zap.Int("rules", len(s.kernel.Rules())))
	return s, nil
}

// loadBase gathers YAML knowledge and plugin-generated knowledge into one
// base. Missing knowledge paths are skipped; a workspace without knowledge
// is legal, just empty-headed.
func (s *session) loadBase(ctx context.Context) (*knowledge.Base, error) {
	merged := &knowledge.Base{}

	for _, p := range s.cfg.Knowledge.Paths {
		path := s.resolve(p)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logging.KnowledgeDebug("Knowledge path %s missing, skipping", path)
			continue
		}
		base, err := knowledge.LoadPath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load knowledge from %s: %w", path, err)
		}
		merged.Merge(base)
	}

	dir, enabled := s.resolve(s.cfg.Plugins.Dir), s.cfg.Plugins.Enabled
	if pluginsDir != "" {
		dir, enabled = s.resolve(pluginsDir), true
	}
	if enabled {
		if _, err := os.Stat(dir); err == nil {
			results, err := plugin.NewHost().LoadDir(ctx, dir, workspace)
			if err != nil {
				return nil, err
			}
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(os.Stderr, "plugin %s failed: %v\n", filepath.Base(r.Path), r.Err)
					continue
				}
				merged.Merge(r.Base)
			}
		}
	}

	return merged, nil
}

// loadLearned folds persisted rules from the local store into the kernel.
// No database file means nothing learned yet, which is fine.
func (s *session) loadLearned(ctx context.Context) error {
	dbPath := s.resolve(s.cfg.Memory.DatabasePath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil
	}

	st, err := s.store()
	if err != nil {
		return err
	}
	stored, err := st.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored rules: %w", err)
	}
	if len(stored) == 0 {
		return nil
	}
	if err := knowledge.FromStored(stored).Compile(s.kernel); err != nil {
		return fmt.Errorf("failed to compile stored rules: %w", err)
	}
	logging.Knowledge("Loaded %d stored rules", len(stored))
	return nil
}

// store opens the local store on first use.
func (s *session) store() (*store.LocalStore, error) {
	if s.local != nil {
		return s.local, nil
	}
	st, err := store.NewLocalStore(s.resolve(s.cfg.Memory.DatabasePath))
	if err != nil {
		return nil, err
	}
	s.local = st
	return st, nil
}

// resolve anchors relative paths at the workspace.
func (s *session) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// knowledgePaths returns the resolved knowledge directories that exist,
// for the file watcher.
func (s *session) knowledgePaths() []string {
	var out []string
	for _, p := range s.cfg.Knowledge.Paths {
		path := s.resolve(p)
		if _, err := os.Stat(path); err == nil {
			out = append(out, path)
		}
	}
	return out
}

func (s *session) Close() {
	if s.local != nil {
		s.local.Close()
	}
}
