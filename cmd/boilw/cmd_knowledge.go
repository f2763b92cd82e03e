package main

import (
	"fmt"
	"strconv"
	"strings"

	"boilw/internal/knowledge"
	"boilw/internal/memory"
	"boilw/internal/types"

	"github.com/spf13/cobra"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect and manage the permanent knowledge tier",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every rule in the compiled knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		rules := s.kernel.Rules()
		if len(rules) == 0 {
			fmt.Println("No rules.")
			return nil
		}
		for _, r := range rules {
			var parts []string
			for _, t := range r.Triggers {
				parts = append(parts, s.kernel.Label(t))
			}
			line := strings.Join(parts, " + ")
			if len(r.Forbids) > 0 {
				var fs []string
				for _, f := range r.Forbids {
					fs = append(fs, s.kernel.Label(f))
				}
				line += " - (" + strings.Join(fs, ", ") + ")"
			}
			fmt.Printf("%-24s %s -> %s\n", r.Name, line, s.kernel.Label(r.Output))
		}
		return nil
	},
}

var knowledgeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Compiled:  %d flags, %d rules\n",
			len(s.kernel.Flags()), len(s.kernel.Rules()))

		st, err := s.store()
		if err != nil {
			return err
		}
		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Persisted: %d flags, %d rules (%d learned)\n",
			stats.Flags, stats.Rules, stats.LearnedRules)
		return nil
	},
}

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the compiled knowledge base as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		base := knowledge.Export(s.kernel)
		data, err := base.Export()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var knowledgeCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Run consolidation and list promotion candidates",
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

		c := memory.NewConsolidator(st, st, s.cfg.Memory.PromoteThreshold)
		c.SceneLimit = s.cfg.Memory.SceneLimit
		report, err := c.Consolidate(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Scanned %d scenes, %d recurring derivations\n",
			report.ScenesScanned, report.Recurring)

		pending, err := st.ListCandidates(ctx, "", 0)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No candidates.")
			return nil
		}
		for _, cand := range pending {
			causes, err := types.DecodeCauses(cand.Causes)
			if err != nil {
				return err
			}
			fmt.Printf("%4d  [%-8s] %s -> %s (seen %d times)\n",
				cand.ID, cand.Status, strings.Join(causes, " + "), cand.Output, cand.Count)
		}
		return nil
	},
}

var knowledgePromoteCmd = &cobra.Command{
	Use:   "promote <candidate-id>",
	Short: "Promote a pending candidate into a learned rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid candidate id %q", args[0])
		}

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
		c := memory.NewConsolidator(st, st, s.cfg.Memory.PromoteThreshold)
		rule, err := c.Promote(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Promoted: %s (%s -> %s)\n",
			rule.Name, strings.Join(rule.Triggers, " + "), rule.Output)
		return nil
	},
}

var knowledgeRejectCmd = &cobra.Command{
	Use:   "reject <candidate-id>",
	Short: "Reject a pending candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid candidate id %q", args[0])
		}

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
		c := memory.NewConsolidator(st, st, s.cfg.Memory.PromoteThreshold)
		if err := c.Reject(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Rejected candidate %d\n", id)
		return nil
	},
}

func init() {
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeStatsCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)
	knowledgeCmd.AddCommand(knowledgeCandidatesCmd)
	knowledgeCmd.AddCommand(knowledgePromoteCmd)
	knowledgeCmd.AddCommand(knowledgeRejectCmd)
}
