package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"boilw/internal/core"
	"boilw/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKB = `
flags:
  - label: Knife
    description: a sharp tool
rules:
  - name: knife-is-sharp
    when: [Knife]
    then: Sharp
  - when: [Apple]
    then: Fruit
  - when: [SwitchOn]
    unless: [PowerOutage]
    then: LightOn
`

func TestParseAndCompile(t *testing.T) {
	base, err := Parse([]byte(sampleKB), "sample.yaml")
	require.NoError(t, err)
	require.Len(t, base.Rules, 3)
	assert.Equal(t, []string{"PowerOutage"}, base.Rules[2].Unless)

	k := core.NewKernel()
	require.NoError(t, base.Compile(k))

	assert.Equal(t, 3, k.GetStats().Rules)

	k.Inject("SwitchOn")
	firings, err := k.Ponder()
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, "LightOn", k.Label(firings[0].Output))
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("rules: {not a list}"), "bad.yaml")
	assert.Error(t, err)
}

func TestLoadPathDirectoryIsSortedAndRecursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))

	// File names chosen so lexical order differs from creation order.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"),
		[]byte("rules:\n  - when: [X]\n    then: Second\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"),
		[]byte("rules:\n  - when: [X]\n    then: First\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.yml"),
		[]byte("rules:\n  - when: [X]\n    then: Third\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644))

	base, err := LoadPath(dir)
	require.NoError(t, err)
	require.Len(t, base.Rules, 3)
	assert.Equal(t, "First", base.Rules[0].Then)
	assert.Equal(t, "Second", base.Rules[1].Then)
	assert.Equal(t, "Third", base.Rules[2].Then)
}

func TestValidateReportsAllProblems(t *testing.T) {
	base := &Base{
		Rules: []RuleDecl{
			{Name: "ok", When: []string{"A"}, Then: "B"},
			{When: []string{"A"}, Then: ""},            // missing then
			{When: nil, Then: "C"},                     // empty when
			{When: []string{"D"}, Then: "D"},           // self-trigger
			{Name: "ok", When: []string{"A"}, Then: "E"}, // duplicate name
			{When: []string{"A"}, Unless: []string{"F"}, Then: "F"}, // unless own output
		},
	}

	errs := base.Validate()
	require.Len(t, errs, 5)

	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Msg)
	}
	assert.Contains(t, msgs, "missing `then`")
	assert.Contains(t, msgs, "empty `when`")
	assert.Contains(t, msgs, "triggers on its own output")
	assert.Contains(t, msgs, "`unless` names its own output")
}

func TestCompileFailsOnInvalidBase(t *testing.T) {
	base := &Base{Rules: []RuleDecl{{Then: "X"}}}
	err := base.Compile(core.NewKernel())
	assert.ErrorContains(t, err, "validation failed")
}

func TestCompileRulesDoesNotMutateRuleBase(t *testing.T) {
	k := core.NewKernel()
	require.NoError(t, k.LearnLabels("", []string{"A"}, nil, "B"))

	base, err := Parse([]byte("rules:\n  - when: [A]\n    then: C\n"), "new.yaml")
	require.NoError(t, err)

	rules, err := base.CompileRules(k)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, k.GetStats().Rules, "kernel rule base must be untouched")

	k.ReplaceRules(rules)
	k.Inject("A")
	firings, err := k.Ponder()
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, "C", k.Label(firings[0].Output))
}

func TestExportRoundTrip(t *testing.T) {
	base, err := Parse([]byte(sampleKB), "sample.yaml")
	require.NoError(t, err)

	out, err := base.Export()
	require.NoError(t, err)

	again, err := Parse(out, "exported.yaml")
	require.NoError(t, err)

	if diff := cmp.Diff(base.Rules, again.Rules); diff != "" {
		t.Errorf("rules changed across export (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(base.Flags, again.Flags); diff != "" {
		t.Errorf("flags changed across export (-before +after):\n%s", diff)
	}
}

func TestExportFromKernel(t *testing.T) {
	base, err := Parse([]byte(sampleKB), "sample.yaml")
	require.NoError(t, err)

	k := core.NewKernel()
	require.NoError(t, base.Compile(k))

	exported := Export(k)
	require.Len(t, exported.Rules, len(base.Rules))

	// Compiling the exported base yields the same label-level rule graph.
	k2 := core.NewKernel()
	require.NoError(t, exported.Compile(k2))
	if diff := cmp.Diff(exported.Rules, Export(k2).Rules); diff != "" {
		t.Errorf("rules changed across kernel export (-before +after):\n%s", diff)
	}
}

func TestFromStored(t *testing.T) {
	stored := []types.StoredRule{
		{Name: "learned-1", Triggers: []string{"Smoke"}, Output: "Alarm", Learned: true},
	}
	base := FromStored(stored)
	require.Len(t, base.Rules, 1)
	assert.Equal(t, "Alarm", base.Rules[0].Then)

	k := core.NewKernel()
	require.NoError(t, base.Compile(k))
	k.Inject("Smoke")
	firings, err := k.Ponder()
	require.NoError(t, err)
	assert.Len(t, firings, 1)
}
