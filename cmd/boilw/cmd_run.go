package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"boilw/internal/core"
	"boilw/internal/knowledge"
	"boilw/internal/logging"
	"boilw/internal/memory"
	"boilw/internal/trace"
	"boilw/internal/types"

	"github.com/spf13/cobra"
)

var (
	runTraceFlag string
	runWatch     bool
	runScene     bool
)

var runCmd = &cobra.Command{
	Use:   "run [stimuli...]",
	Short: "Inject stimuli and ponder to fixpoint",
	Long: `Loads the knowledge base, injects the given stimuli, and runs the
inference loop until the mind stabilizes. Every firing is printed with its
causes.

Examples:
  boilw run Knife Apple Cut
  boilw run --trace "Fruit Slices" Knife Apple Cut
  boilw run --watch Knife Apple Cut
  boilw run --scene Knife Apple Cut`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStimuli,
}

func init() {
	runCmd.Flags().StringVar(&runTraceFlag, "trace", "", "Print the cause tree for a flag after pondering")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Keep running and re-ponder when knowledge files change")
	runCmd.Flags().BoolVar(&runScene, "scene", false, "Record this run as a scene in the episodic store")
	runCmd.Flags().StringVar(&pluginsDir, "plugins", "", "Load knowledge plugins from this directory")
}

func runStimuli(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := ponderOnce(ctx, s, args); err != nil {
		return err
	}

	if runWatch {
		return watchLoop(ctx, s, args)
	}
	return nil
}

// ponderOnce resets, injects, ponders, prints, and optionally records and
// traces.
func ponderOnce(ctx context.Context, s *session, stimuli []string) error {
	s.kernel.Reset()

	var rec *memory.Recorder
	if runScene {
		st, err := s.store()
		if err != nil {
			return err
		}
		rec = memory.NewRecorder(st)
		rec.Begin()
	}

	fmt.Println("--- Simulation Start ---")
	for _, stim := range stimuli {
		fmt.Println(trace.FormatStimulus(stim))
	}
	s.kernel.Inject(stimuli...)
	if rec != nil {
		rec.Observe(stimuli...)
	}

	firings, err := s.kernel.Ponder()
	if err != nil {
		return err
	}
	printFirings(s.kernel, firings)
	fmt.Println("--- Simulation Stable ---")
	printActive(s.kernel)

	if rec != nil {
		rec.Note(memory.FiringsToDerivations(firings, s.kernel.Label)...)
		scene, err := rec.End(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Scene recorded: %s\n", scene.ID)
	}

	if runTraceFlag != "" {
		node, err := trace.BuildByLabel(s.kernel, runTraceFlag)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(trace.RenderHeader(runTraceFlag))
		fmt.Print(trace.Render(node))
	}
	return nil
}

// watchLoop re-ponders the same stimuli whenever a knowledge file changes.
func watchLoop(ctx context.Context, s *session, stimuli []string) error {
	dirs := s.knowledgePaths()
	if len(dirs) == 0 {
		return fmt.Errorf("no knowledge paths to watch")
	}

	reload := func(rctx context.Context, path string) error {
		base, err := knowledge.LoadPaths(dirs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			return err
		}
		rules, err := base.CompileRules(s.kernel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			return err
		}
		s.kernel.ReplaceRules(rules)
		logging.Watch("Knowledge reloaded after change to %s", path)

		fmt.Printf("\n--- Knowledge changed (%s), re-pondering ---\n", path)
		return ponderOnce(rctx, s, stimuli)
	}

	watcher, err := core.NewKnowledgeWatcher(dirs, s.cfg.GetWatchDebounce(), reload)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Stop()

	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)...\n", strings.Join(dirs, ", "))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	return nil
}

func printFirings(k *core.Kernel, firings []types.Firing) {
	for _, f := range firings {
		fmt.Printf("[Tick %d] %s\n", f.Tick, trace.FormatFiring(k, f))
	}
}

func printActive(k *core.Kernel) {
	ids := k.Active()
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		labels = append(labels, k.Label(id))
	}
	fmt.Printf("Active flags (%d): %s\n", len(labels), strings.Join(labels, ", "))
}
