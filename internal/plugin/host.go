// Package plugin loads knowledge-generating plugins: Go files interpreted
// at runtime with Yaegi instead of compiled in. A plugin computes a
// knowledge document programmatically (tables of rules, generated flag
// families) where static YAML would be tedious to author.
//
// Contract: a plugin file declares
//
//	func Generate(workspace string) (string, error)
//
// returning a YAML knowledge document. Only whitelisted stdlib imports are
// allowed; a plugin that misbehaves fails alone and never takes the host
// down with it.
package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"boilw/internal/knowledge"
	"boilw/internal/logging"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultTimeout bounds a single plugin's execution.
const DefaultTimeout = 5 * time.Second

// allowedPackages whitelists stdlib imports. Filesystem, network, exec, and
// unsafe access stay blocked.
var allowedPackages = map[string]bool{
	"fmt":           true,
	"strings":       true,
	"strconv":       true,
	"sort":          true,
	"math":          true,
	"regexp":        true,
	"bytes":         true,
	"time":          true,
	"encoding/json": true,
}

// Host interprets plugin files and compiles their output into knowledge
// bases.
type Host struct {
	Timeout time.Duration
}

// NewHost returns a Host with the default timeout.
func NewHost() *Host {
	return &Host{Timeout: DefaultTimeout}
}

// Result is the outcome of loading one plugin file.
type Result struct {
	Path string
	Base *knowledge.Base
	Err  error
}

// LoadDir interprets every .go file in dir, in name order. A failing plugin
// produces a Result with Err set; the rest still load.
func (h *Host) LoadDir(ctx context.Context, dir, workspace string) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var results []Result
	for _, name := range names {
		path := filepath.Join(dir, name)
		base, err := h.LoadFile(ctx, path, workspace)
		if err != nil {
			logging.Get(logging.CategoryPlugin).Error("Plugin %s failed: %v", name, err)
		} else {
			logging.Plugin("Loaded plugin %s (%d flags, %d rules)",
				name, len(base.Flags), len(base.Rules))
		}
		results = append(results, Result{Path: path, Base: base, Err: err})
	}
	return results, nil
}

// LoadFile interprets one plugin file and parses its generated document.
func (h *Host) LoadFile(ctx context.Context, path, workspace string) (*knowledge.Base, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin: %w", err)
	}

	doc, err := h.run(ctx, string(code), workspace)
	if err != nil {
		return nil, err
	}

	base, err := knowledge.Parse([]byte(doc), "plugin:"+filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("plugin produced invalid document: %w", err)
	}
	if errs := base.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("plugin produced invalid knowledge: %v", errs[0])
	}
	return base, nil
}

// run evaluates the plugin and calls its Generate function under the host
// timeout.
func (h *Host) run(ctx context.Context, code, workspace string) (string, error) {
	if err := validateImports(code); err != nil {
		return "", fmt.Errorf("invalid imports: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", fmt.Errorf("failed to load stdlib: %w", err)
	}

	if _, err := i.Eval(code); err != nil {
		return "", fmt.Errorf("plugin evaluation failed: %w", err)
	}

	v, err := i.Eval("main.Generate")
	if err != nil {
		return "", fmt.Errorf("Generate function not found: %w", err)
	}
	generate, ok := v.Interface().(func(string) (string, error))
	if !ok {
		return "", fmt.Errorf("Generate has incorrect signature (expected: func(string) (string, error))")
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultChan := make(chan string, 1)
	errChan := make(chan error, 1)
	go func() {
		doc, err := generate(workspace)
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- doc
	}()

	select {
	case doc := <-resultChan:
		return doc, nil
	case err := <-errChan:
		return "", fmt.Errorf("plugin failed: %w", err)
	case <-ctx.Done():
		return "", fmt.Errorf("plugin timed out: %w", ctx.Err())
	}
}

// validateImports checks that the plugin only imports allowed packages.
func validateImports(code string) error {
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			if pkg := importPath(trimmed); pkg != "" && !allowedPackages[pkg] {
				return fmt.Errorf("package %q is not allowed in plugins", pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			rest := strings.TrimPrefix(trimmed, "import ")
			if pkg := importPath(rest); pkg != "" && !allowedPackages[pkg] {
				return fmt.Errorf("package %q is not allowed in plugins", pkg)
			}
		}
	}
	return nil
}

// importPath extracts the quoted path from one import line, handling
// aliased imports.
func importPath(line string) string {
	start := strings.Index(line, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(line[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return line[start+1 : start+1+end]
}
