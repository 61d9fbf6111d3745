package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/queue"
)

var (
	nextTier           int
	nextCount          int
	nextScope          string
	nextChronic        bool
	nextNoTierFallback bool
	nextExplain        bool
	nextCluster        string
	nextIncludeSkipped bool
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Select the next work items from the queue",
	Args:  cobra.NoArgs,
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		cluster := resolveClusterFocus(proj, nextCluster, nextScope)
		opts := queue.BuildOptions{
			Count:               nextCount,
			ScanPath:            "",
			Scope:               nextScope,
			Status:              "open",
			IncludeSubjective:   true,
			SubjectiveThreshold: proj.cfg.TargetStrictScore,
			Chronic:             nextChronic,
			NoTierFallback:      nextNoTierFallback,
			Explain:             nextExplain,
			Plan:                proj.plan,
			IncludeSkipped:      nextIncludeSkipped,
			CollapseClusters:    true,
			Cluster:             cluster,
		}
		if cmd.Flags().Changed("tier") {
			t := nextTier
			opts.Tier = &t
		}
		res, err := queue.Build(proj.state, proj.registry, opts)
		if err != nil {
			return err
		}
		if res.FallbackReason != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "tier fallback: %s\n", res.FallbackReason)
		}
		for _, item := range res.Items {
			fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s %s — %s\n", item.Tier, item.ID, item.Detector, item.Summary)
			if item.Explain != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", item.Explain.Policy)
				for _, factor := range item.Explain.RankingFactors {
					fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", factor)
				}
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d total\n", len(res.Items), res.Total)
		return nil
	}),
}

// resolveClusterFocus implements the explicit-flag-wins-over-plan-default
// rule: an explicit --cluster always applies; the plan's own active cluster
// only kicks in when neither --cluster nor --scope was given, so a one-off
// scoped query never gets silently narrowed by whatever cluster the plan
// last focused.
func resolveClusterFocus(proj *project, explicit, scope string) string {
	if explicit != "" {
		return explicit
	}
	if scope != "" {
		return ""
	}
	return proj.plan.ActiveCluster
}

func init() {
	nextCmd.Flags().IntVar(&nextTier, "tier", 0, "restrict to a specific tier")
	nextCmd.Flags().IntVar(&nextCount, "count", 10, "maximum items to return (0 = no limit)")
	nextCmd.Flags().StringVar(&nextScope, "scope", "", "restrict to a file/detector/hash-suffix scope")
	nextCmd.Flags().BoolVar(&nextChronic, "chronic", false, "only items reopened past the chronic threshold")
	nextCmd.Flags().BoolVar(&nextNoTierFallback, "no-tier-fallback", false, "show no items instead of falling back to another tier when the requested one is empty")
	nextCmd.Flags().BoolVar(&nextExplain, "explain", false, "include per-item ranking detail")
	nextCmd.Flags().StringVar(&nextCluster, "cluster", "", "focus on one auto-cluster's members, expanded instead of collapsed")
	nextCmd.Flags().BoolVar(&nextIncludeSkipped, "include-skipped", false, "include items the plan has skipped")
}
