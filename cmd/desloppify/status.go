package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/queue"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current score snapshot and plan progress",
	Args:  cobra.NoArgs,
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		out := cmd.OutOrStdout()
		printScoreOrFrozenProgress(cmd, proj)
		fmt.Fprintf(out, "queue: %d open, %d skipped\n", len(proj.plan.QueueOrder), len(proj.plan.Skipped))
		if proj.plan.ActiveCluster != "" {
			fmt.Fprintf(out, "active cluster: %s\n", proj.plan.ActiveCluster)
		}
		fmt.Fprintf(out, "clusters: %d\n", len(proj.plan.Clusters))
		fmt.Fprintf(out, "scans: %d\n", proj.state.ScanCount)
		return nil
	}),
}

// printScoreOrFrozenProgress shows the frozen plan-start strict score plus
// queue progress while a work cycle is active and non-empty; otherwise it
// falls back to the live score snapshot.
func printScoreOrFrozenProgress(cmd *cobra.Command, proj *project) {
	out := cmd.OutOrStdout()
	if strict, ok := proj.plan.PlanStartScores["strict"]; ok {
		remaining, _ := queue.PlanAwareQueueCount(proj.state, proj.registry, proj.plan)
		if remaining > 0 {
			fmt.Fprintf(out, "score (frozen at plan start): strict %.1f/100\n", strict)
			fmt.Fprintf(out, "queue: %d item(s) remaining — score will not update until the queue is clear and you run `desloppify scan`\n", remaining)
			return
		}
	}
	snap := proj.scoreSnapshot()
	fmt.Fprintf(out, "overall %.1f  objective %.1f  strict %.1f  verified %.1f\n",
		snap.Overall, snap.Objective, snap.Strict, snap.Verified)
}
