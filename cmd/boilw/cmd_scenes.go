package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var scenesLimit int

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "Inspect the episodic memory tier",
}

var scenesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded scenes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		st, err := s.store()
		if err != nil {
			return err
		}

		limit := scenesLimit
		if limit == 0 {
			limit = s.cfg.Memory.SceneLimit
		}
		scenes, err := st.ListScenes(ctx, limit)
		if err != nil {
			return err
		}
		if len(scenes) == 0 {
			fmt.Println("No scenes recorded.")
			return nil
		}
		for _, sc := range scenes {
			fmt.Printf("%s  %s  stimuli: %s\n",
				sc.ID,
				sc.StartedAt.Local().Format(time.RFC3339),
				strings.Join(sc.Stimuli, ", "))
		}
		return nil
	},
}

var scenesShowCmd = &cobra.Command{
	Use:   "show <scene-id>",
	Short: "Show one scene with its derivations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		st, err := s.store()
		if err != nil {
			return err
		}
		scene, err := st.GetScene(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Scene:   %s\n", scene.ID)
		fmt.Printf("Started: %s\n", scene.StartedAt.Local().Format(time.RFC3339))
		if !scene.EndedAt.IsZero() {
			fmt.Printf("Ended:   %s\n", scene.EndedAt.Local().Format(time.RFC3339))
		}
		fmt.Printf("Stimuli: %s\n", strings.Join(scene.Stimuli, ", "))
		if len(scene.Events) == 0 {
			fmt.Println("No derivations.")
			return nil
		}
		fmt.Println("Derivations:")
		for _, d := range scene.Events {
			line := strings.Join(d.Causes, " + ")
			fmt.Printf("  [Tick %d] %s -> %s", d.Tick, line, d.Output)
			if d.Rule != "" {
				fmt.Printf("  (%s)", d.Rule)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	scenesListCmd.Flags().IntVar(&scenesLimit, "limit", 0, "Maximum scenes to list (default: config scene_limit)")
	scenesCmd.AddCommand(scenesListCmd)
	scenesCmd.AddCommand(scenesShowCmd)
}
