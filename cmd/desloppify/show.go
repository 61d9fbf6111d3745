package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

var (
	showStatus string
	showPath   string
)

var showCmd = &cobra.Command{
	Use:   "show <pattern>",
	Short: "List findings matching a pattern, path, detector, or hash suffix",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		pattern := args[0]
		ids := proj.state.MatchFindings(pattern, finding.Status(showStatus))
		sort.Strings(ids)

		scoped := finding.PathScopedFindings(proj.state.Findings, showPath)
		matches := make([]*finding.Finding, 0, len(ids))
		for _, id := range ids {
			if f, ok := scoped[id]; ok {
				matches = append(matches, f)
			}
		}
		if len(matches) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no findings matched %q\n", pattern)
			return nil
		}

		surfaced, hiddenByDetector := finding.ApplyFindingNoiseBudget(matches, proj.cfg.FindingNoiseBudget, proj.cfg.FindingNoiseGlobalBudget)
		for _, f := range surfaced {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s %s — %s\n", f.Status, f.ID, f.Detector, f.Summary)
		}

		hiddenTotal := 0
		detectors := make([]string, 0, len(hiddenByDetector))
		for d, n := range hiddenByDetector {
			detectors = append(detectors, d)
			hiddenTotal += n
		}
		if hiddenTotal > 0 {
			sort.Strings(detectors)
			fmt.Fprintf(cmd.OutOrStdout(), "... %d more hidden by the noise budget:\n", hiddenTotal)
			for _, d := range detectors {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s: %d hidden\n", d, hiddenByDetector[d])
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d total matched\n", len(surfaced), len(matches))
		return nil
	}),
}

func init() {
	showCmd.Flags().StringVar(&showStatus, "status", "", "restrict to one status")
	showCmd.Flags().StringVar(&showPath, "path", "", "restrict to a file subtree")
}
