// Package knowledge compiles YAML knowledge bases into kernel rules.
//
// A knowledge base is one or more YAML documents declaring flags and rules:
//
//	flags:
//	  - label: Knife
//	    description: a sharp tool
//	rules:
//	  - name: cutting
//	    when: [Sharp, Solid, Cut]
//	    then: Separation
//	  - when: [SwitchOn]
//	    unless: [PowerOutage]
//	    then: LightOn
//
// `when` is conjunctive, `unless` is inhibitory, and OR is written as several
// rules sharing a `then`. This is the compile step the runtime loads its
// static logic graph from.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"boilw/internal/core"
	"boilw/internal/logging"
	"boilw/internal/types"

	"gopkg.in/yaml.v3"
)

// FlagDecl pre-declares a flag with an optional description.
type FlagDecl struct {
	Label       string `yaml:"label"`
	Description string `yaml:"description,omitempty"`
}

// RuleDecl is one logic link in source form.
type RuleDecl struct {
	Name   string   `yaml:"name,omitempty"`
	When   []string `yaml:"when"`
	Unless []string `yaml:"unless,omitempty"`
	Then   string   `yaml:"then"`
}

// Base is a parsed knowledge base.
type Base struct {
	Flags []FlagDecl `yaml:"flags,omitempty"`
	Rules []RuleDecl `yaml:"rules,omitempty"`

	// Sources records which file contributed each rule, parallel to Rules.
	Sources []string `yaml:"-"`
}

// ParseFile parses a single knowledge file.
func ParseFile(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses knowledge YAML. The source string is recorded per rule for
// diagnostics.
func Parse(data []byte, source string) (*Base, error) {
	var base Base
	if err := yaml.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	base.Sources = make([]string, len(base.Rules))
	for i := range base.Sources {
		base.Sources[i] = source
	}
	return &base, nil
}

// LoadPath loads a knowledge file, or every *.yaml under a directory
// (recursive, sorted for deterministic rule order).
func LoadPath(path string) (*Base, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "LoadPath")
	defer timer.Stop()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge path %s: %w", path, err)
	}

	if !info.IsDir() {
		return ParseFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk knowledge dir %s: %w", path, err)
	}
	sort.Strings(files)

	merged := &Base{}
	for _, f := range files {
		base, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		merged.Merge(base)
	}
	logging.Knowledge("loaded %d rules, %d flag decls from %s (%d files)",
		len(merged.Rules), len(merged.Flags), path, len(files))
	return merged, nil
}

// LoadPaths merges several files/directories in order.
func LoadPaths(paths []string) (*Base, error) {
	merged := &Base{}
	for _, p := range paths {
		base, err := LoadPath(p)
		if err != nil {
			return nil, err
		}
		merged.Merge(base)
	}
	return merged, nil
}

// Merge appends another base's declarations.
func (b *Base) Merge(other *Base) {
	b.Flags = append(b.Flags, other.Flags...)
	b.Rules = append(b.Rules, other.Rules...)
	b.Sources = append(b.Sources, other.Sources...)
}

// Compile validates the base and loads it into a kernel: flags are interned
// in declaration order, then rules are learned in file order.
func (b *Base) Compile(k *core.Kernel) error {
	if errs := b.Validate(); len(errs) > 0 {
		return fmt.Errorf("knowledge validation failed: %s", errs[0])
	}

	for _, f := range b.Flags {
		k.DefineFlag(f.Label, f.Description)
	}
	for _, r := range b.Rules {
		if err := k.LearnLabels(r.Name, r.When, r.Unless, r.Then); err != nil {
			return fmt.Errorf("rule %q: %w", r.describe(), err)
		}
	}
	logging.Knowledge("compiled %d rules into kernel", len(b.Rules))
	return nil
}

// CompileRules validates and converts the base into a standalone rule slice
// against the given kernel's symbol table, without mutating the kernel's rule
// base. Used by hot reload to build the replacement set first.
func (b *Base) CompileRules(k *core.Kernel) ([]types.Rule, error) {
	if errs := b.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("knowledge validation failed: %s", errs[0])
	}

	for _, f := range b.Flags {
		k.DefineFlag(f.Label, f.Description)
	}

	rules := make([]types.Rule, 0, len(b.Rules))
	for _, r := range b.Rules {
		rule := types.Rule{Name: r.Name, Output: k.Define(r.Then)}
		for _, w := range r.When {
			rule.Triggers = append(rule.Triggers, k.Define(w))
		}
		for _, u := range r.Unless {
			rule.Forbids = append(rule.Forbids, k.Define(u))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Export renders the base back to YAML.
func (b *Base) Export() ([]byte, error) {
	return yaml.Marshal(b)
}

// Export rebuilds a source-form base from a compiled kernel. Flags with
// descriptions become declarations; every rule comes back label-addressed.
func Export(k *core.Kernel) *Base {
	base := &Base{}
	for _, f := range k.Flags() {
		if f.Description != "" {
			base.Flags = append(base.Flags, FlagDecl{Label: f.Label, Description: f.Description})
		}
	}
	for _, r := range k.Rules() {
		decl := RuleDecl{Name: r.Name, Then: k.Label(r.Output)}
		for _, t := range r.Triggers {
			decl.When = append(decl.When, k.Label(t))
		}
		for _, f := range r.Forbids {
			decl.Unless = append(decl.Unless, k.Label(f))
		}
		base.Rules = append(base.Rules, decl)
		base.Sources = append(base.Sources, "kernel")
	}
	return base
}

// FromStored rebuilds a base from persisted rules (the permanent tier).
func FromStored(rules []types.StoredRule) *Base {
	base := &Base{}
	for _, r := range rules {
		base.Rules = append(base.Rules, RuleDecl{
			Name:   r.Name,
			When:   r.Triggers,
			Unless: r.Forbids,
			Then:   r.Output,
		})
		base.Sources = append(base.Sources, "store")
	}
	return base
}

func (r RuleDecl) describe() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%s -> %s", strings.Join(r.When, "+"), r.Then)
}
