package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
	"github.com/theRebelliousNerd/desloppify/internal/synthesis"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Edit the persistent work plan",
}

func init() {
	planCmd.AddCommand(
		planSkipCmd, planUnskipCmd, planMoveCmd,
		planDescribeCmd, planNoteCmd,
		planClusterCmd, planSynthesizeCmd,
	)
	planClusterCmd.AddCommand(
		clusterCreateCmd, clusterDeleteCmd, clusterAddCmd,
		clusterRemoveCmd, clusterMoveCmd, clusterFocusCmd, clusterUnfocusCmd,
	)
}

// resolvePatterns expands each pattern into matching open finding ids,
// deduplicating while preserving first-seen order.
func resolvePatterns(proj *project, patterns []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, pattern := range patterns {
		for _, id := range proj.state.MatchFindings(pattern, "") {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func withProject(run func(cmd *cobra.Command, proj *project, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		proj, err := loadProject(root)
		if err != nil {
			return err
		}
		return run(cmd, proj, args)
	}
}

var (
	skipTemporary     bool
	skipPermanent     bool
	skipFalsePositive bool
	skipReason        string
	skipNote          string
	skipAttestation   string
	skipReviewAfter   int
)

var planSkipCmd = &cobra.Command{
	Use:   "skip <pattern...>",
	Short: "Skip findings matching one or more patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		kind := plan.SkipTemporary
		switch {
		case skipPermanent:
			kind = plan.SkipPermanent
		case skipFalsePositive:
			kind = plan.SkipFalsePositive
		case skipTemporary:
			kind = plan.SkipTemporary
		}
		ids := resolvePatterns(proj, args)
		if len(ids) == 0 {
			return errs.Referentialf("plan.skip", "no findings matched")
		}
		count, err := plan.SkipItems(proj.plan, ids, plan.SkipOptions{
			Kind: kind, Reason: skipReason, Note: skipNote,
			Attestation: skipAttestation, ReviewAfter: skipReviewAfter,
			ScanCount: proj.state.ScanCount,
		}, time.Now())
		if err != nil {
			return err
		}
		if err := proj.save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "skipped %d finding(s) as %s\n", count, kind)
		return nil
	}),
}

func init() {
	planSkipCmd.Flags().BoolVar(&skipTemporary, "temporary", true, "skip temporarily; resurfaces only when --review-after is set (default)")
	planSkipCmd.Flags().BoolVar(&skipPermanent, "permanent", false, "skip indefinitely; requires --note and --attest")
	planSkipCmd.Flags().BoolVar(&skipFalsePositive, "false-positive", false, "mark as a detector false positive; requires --attest")
	planSkipCmd.Flags().StringVar(&skipReason, "reason", "", "why this is being skipped")
	planSkipCmd.Flags().StringVar(&skipNote, "note", "", "required for --permanent")
	planSkipCmd.Flags().StringVar(&skipAttestation, "attest", "", "required for --permanent or --false-positive")
	planSkipCmd.Flags().IntVar(&skipReviewAfter, "review-after", 0, "number of scans after which a temporary skip resurfaces (0 = never)")
}

var planUnskipCmd = &cobra.Command{
	Use:   "unskip <pattern...>",
	Short: "Bring skipped findings back into the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		ids := resolvePatterns(proj, args)
		count, reopened := plan.UnskipItems(proj.plan, ids)
		for _, id := range reopened {
			if f, ok := proj.state.Get(id); ok {
				f.Reopen(time.Now())
			}
		}
		if err := proj.save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unskipped %d finding(s)\n", count)
		return nil
	}),
}

var (
	moveTop    bool
	moveBottom bool
	moveBefore string
	moveAfter  string
	moveUp     int
	moveDown   int
)

var planMoveCmd = &cobra.Command{
	Use:   "move <pattern...>",
	Short: "Reposition findings within the queue order",
	Args:  cobra.MinimumNArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		pos, err := resolveMoveFlags()
		if err != nil {
			return err
		}
		ids := resolvePatterns(proj, args)
		count := plan.MoveItems(proj.plan, ids, pos)
		if err := proj.save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "moved %d finding(s)\n", count)
		return nil
	}),
}

func resolveMoveFlags() (plan.Position, error) {
	switch {
	case moveTop:
		return plan.Position{Kind: "top"}, nil
	case moveBottom:
		return plan.Position{Kind: "bottom"}, nil
	case moveBefore != "":
		return plan.Position{Kind: "before", Target: moveBefore}, nil
	case moveAfter != "":
		return plan.Position{Kind: "after", Target: moveAfter}, nil
	case moveUp > 0:
		return plan.Position{Kind: "up", Offset: moveUp}, nil
	case moveDown > 0:
		return plan.Position{Kind: "down", Offset: moveDown}, nil
	default:
		return plan.Position{}, errs.Validationf("plan.move", "one of --top, --bottom, --before, --after, --up, --down is required")
	}
}

func init() {
	planMoveCmd.Flags().BoolVar(&moveTop, "top", false, "move to the front of the queue")
	planMoveCmd.Flags().BoolVar(&moveBottom, "bottom", false, "move to the back of the queue")
	planMoveCmd.Flags().StringVar(&moveBefore, "before", "", "move immediately before this id")
	planMoveCmd.Flags().StringVar(&moveAfter, "after", "", "move immediately after this id")
	planMoveCmd.Flags().IntVar(&moveUp, "up", 0, "move up N positions")
	planMoveCmd.Flags().IntVar(&moveDown, "down", 0, "move down N positions")
}

var (
	describeText string
	noteText     string
)

var planDescribeCmd = &cobra.Command{
	Use:   "describe <id>",
	Short: "Set a finding's user-facing description",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		plan.DescribeFinding(proj.plan, args[0], describeText, time.Now())
		return proj.save()
	}),
}

var planNoteCmd = &cobra.Command{
	Use:   "note <id>",
	Short: "Attach a note to a finding",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		plan.AnnotateFinding(proj.plan, args[0], noteText, time.Now())
		return proj.save()
	}),
}

func init() {
	planDescribeCmd.Flags().StringVar(&describeText, "description", "", "description text")
	planNoteCmd.Flags().StringVar(&noteText, "note", "", "note text")
}

var planClusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage manual clusters",
}

var (
	clusterDescription string
	clusterAction      string
)

var clusterCreateCmd = &cobra.Command{
	Use:  "create <name>",
	Args: cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		_, err := plan.CreateCluster(proj.plan, args[0], clusterDescription, clusterAction, time.Now())
		if err != nil {
			return err
		}
		return proj.save()
	}),
}

var clusterDeleteCmd = &cobra.Command{
	Use:  "delete <name>",
	Args: cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		if _, err := plan.DeleteCluster(proj.plan, args[0], time.Now()); err != nil {
			return err
		}
		return proj.save()
	}),
}

var clusterAddCmd = &cobra.Command{
	Use:  "add <name> <pattern...>",
	Args: cobra.MinimumNArgs(2),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		ids := resolvePatterns(proj, args[1:])
		if _, err := plan.AddToCluster(proj.plan, args[0], ids, time.Now()); err != nil {
			return err
		}
		return proj.save()
	}),
}

var clusterRemoveCmd = &cobra.Command{
	Use:  "remove <name> <pattern...>",
	Args: cobra.MinimumNArgs(2),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		ids := resolvePatterns(proj, args[1:])
		if _, err := plan.RemoveFromCluster(proj.plan, args[0], ids, time.Now()); err != nil {
			return err
		}
		return proj.save()
	}),
}

var clusterMoveCmd = &cobra.Command{
	Use:  "move <name>",
	Args: cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		pos, err := resolveMoveFlags()
		if err != nil {
			return err
		}
		if _, err := plan.MoveCluster(proj.plan, args[0], pos); err != nil {
			return err
		}
		return proj.save()
	}),
}

var clusterFocusCmd = &cobra.Command{
	Use:  "focus <name>",
	Args: cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		if err := plan.SetFocus(proj.plan, args[0]); err != nil {
			return err
		}
		return proj.save()
	}),
}

var clusterUnfocusCmd = &cobra.Command{
	Use:  "unfocus",
	Args: cobra.NoArgs,
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		plan.ClearFocus(proj.plan)
		return proj.save()
	}),
}

func init() {
	clusterCreateCmd.Flags().StringVar(&clusterDescription, "description", "", "cluster description")
	clusterCreateCmd.Flags().StringVar(&clusterAction, "action", "", "suggested next-command template")
	clusterMoveCmd.Flags().AddFlagSet(planMoveCmd.Flags())
}

var (
	synthesizeStage           string
	synthesizeReport          string
	synthesizeComplete        bool
	synthesizeConfirmExisting bool
	synthesizeStrategy        string
	synthesizeNote            string
)

var planSynthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Advance the observe/reflect/organize synthesis cycle",
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		now := time.Now()
		switch {
		case synthesizeComplete:
			summary, err := synthesis.Complete(proj.plan, proj.state, synthesizeStrategy, now)
			if err != nil {
				return err
			}
			if err := proj.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synthesis complete: %d/%d organized across %d clusters\n",
				summary.Organized, summary.Total, summary.ClusterCount)
			return nil
		case synthesizeConfirmExisting:
			summary, err := synthesis.ConfirmExisting(proj.plan, proj.state, synthesizeNote, synthesizeStrategy, now)
			if err != nil {
				return err
			}
			if err := proj.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed existing synthesis: %d/%d organized\n", summary.Organized, summary.Total)
			return nil
		default:
			var err error
			switch synthesizeStage {
			case synthesis.StageObserve:
				_, err = synthesis.Observe(proj.plan, proj.state, synthesizeReport, now)
			case synthesis.StageReflect:
				_, err = synthesis.Reflect(proj.plan, proj.state, synthesizeReport, now)
			case synthesis.StageOrganize:
				_, err = synthesis.Organize(proj.plan, synthesizeReport, now)
			default:
				err = errs.Validationf("plan.synthesize", "--stage must be observe, reflect, or organize")
			}
			if err != nil {
				return err
			}
			if err := proj.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s stage\n", synthesizeStage)
			return nil
		}
	}),
}

func init() {
	planSynthesizeCmd.Flags().StringVar(&synthesizeStage, "stage", "", "observe|reflect|organize")
	planSynthesizeCmd.Flags().StringVar(&synthesizeReport, "report", "", "stage report text")
	planSynthesizeCmd.Flags().BoolVar(&synthesizeComplete, "complete", false, "finish the synthesis cycle")
	planSynthesizeCmd.Flags().BoolVar(&synthesizeConfirmExisting, "confirm-existing", false, "confirm prior synthesis is still accurate without redoing stages")
	planSynthesizeCmd.Flags().StringVar(&synthesizeStrategy, "strategy", "", "completion strategy label")
	planSynthesizeCmd.Flags().StringVar(&synthesizeNote, "note", "", "note recorded with --confirm-existing")
}
