package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"boilw/internal/config"
	"boilw/internal/datalog"
	"boilw/internal/knowledge"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [stimuli...]",
	Short: "Validate the knowledge base and analyze its logic",
	Long: `Validates the knowledge base, then compiles the rule graph to a
Datalog program and analyzes it: stratification, inhibition cycles, and
flags no rule mentions.

With stimuli, additionally cross-checks the kernel's closure against
stratified evaluation and reports flags whose activation differs. A
divergence is not an error; it means inhibition outcomes depend on firing
order, which the tick semantics resolve deterministically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := newSession(ctx)
		if err != nil {
			// Surface every validation problem from the raw files, not
			// just the first compile failure.
			printSourceProblems()
			return err
		}
		defer s.Close()

		report := datalog.Check(s.kernel, args)

		fmt.Printf("Knowledge base: %d flags, %d rules\n", report.Flags, report.Rules)

		if report.AnalysisErr != "" {
			fmt.Printf("Stratification: FAILED\n  %s\n", report.AnalysisErr)
		} else {
			fmt.Println("Stratification: ok")
		}

		if len(report.InhibitionCycles) > 0 {
			fmt.Println("Inhibition cycles:")
			for _, cycle := range report.InhibitionCycles {
				fmt.Printf("  %s\n", strings.Join(cycle, " <-> "))
			}
		}

		if len(report.IsolatedFlags) > 0 {
			fmt.Printf("Isolated flags (declared, never used): %s\n",
				strings.Join(report.IsolatedFlags, ", "))
		}

		if report.CrossChecked {
			if len(report.Divergences) == 0 {
				fmt.Println("Cross-check: tick semantics agree with stratified evaluation")
			} else {
				fmt.Println("Cross-check: divergences found")
				for _, d := range report.Divergences {
					fmt.Printf("  %s: kernel=%v stratified=%v\n", d.Label, d.Kernel, d.Stratified)
				}
			}
		}

		if report.Clean() {
			fmt.Println("No problems found.")
		}
		return nil
	},
}

// printSourceProblems re-parses the raw knowledge files to list every
// validation problem, not just the first compile failure.
func printSourceProblems() {
	cfg, err := config.Load(workspace)
	if err != nil {
		return
	}
	var paths []string
	for _, p := range cfg.Knowledge.Paths {
		path := p
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspace, path)
		}
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}
	base, err := knowledge.LoadPaths(paths)
	if err != nil {
		return
	}
	for _, verr := range base.Validate() {
		fmt.Println(" ", verr.Error())
	}
}
