package types

import "context"

// KnowledgeStore persists the permanent tier: flags and rules.
type KnowledgeStore interface {
	SaveFlag(ctx context.Context, label, description string) error
	SaveRule(ctx context.Context, name string, triggers, forbids []string, output string) error
	// SaveLearnedRule is SaveRule with the learned marker set; promotion
	// uses it so learned rules stay distinguishable from authored ones.
	SaveLearnedRule(ctx context.Context, name string, triggers, forbids []string, output string) error
	LoadRules(ctx context.Context) ([]StoredRule, error)
	DeleteRule(ctx context.Context, name string) error
	Stats(ctx context.Context) (KnowledgeStats, error)
}

// EpisodicStore persists the temporary tier: scenes and their derivations,
// plus the staged promotion candidates bridging the two tiers.
type EpisodicStore interface {
	RecordScene(ctx context.Context, scene Scene) error
	ListScenes(ctx context.Context, limit int) ([]Scene, error)
	GetScene(ctx context.Context, id string) (Scene, error)

	RecordCandidate(ctx context.Context, output string, causes []string) (int, error)
	ListCandidates(ctx context.Context, status string, limit int) ([]Candidate, error)
	SetCandidateStatus(ctx context.Context, id int64, status string) error
}

// StoredRule is a rule as persisted, label-addressed rather than ID-addressed
// so it survives across kernel instances.
type StoredRule struct {
	Name     string   `json:"name,omitempty"`
	Triggers []string `json:"triggers"`
	Forbids  []string `json:"forbids,omitempty"`
	Output   string   `json:"output"`
	Learned  bool     `json:"learned,omitempty"`
}

// KnowledgeStats summarizes the permanent tier.
type KnowledgeStats struct {
	Flags        int `json:"flags"`
	Rules        int `json:"rules"`
	LearnedRules int `json:"learned_rules"`
}
