package main

import (
	"fmt"

	"boilw/internal/trace"

	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace <flag> [stimuli...]",
	Short: "Explain why a flag would be active",
	Long: `Injects the stimuli, ponders to fixpoint, and prints the cause tree
for the given flag.

Example:
  boilw trace "Fruit Slices" Knife Apple Cut`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, stimuli := args[0], args[1:]

		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		s.kernel.Inject(stimuli...)
		if _, err := s.kernel.Ponder(); err != nil {
			return err
		}

		node, err := trace.BuildByLabel(s.kernel, target)
		if err != nil {
			return err
		}
		fmt.Println(trace.RenderHeader(target))
		fmt.Print(trace.Render(node))
		return nil
	},
}
