package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/query"
)

var (
	resolveStatus      string
	resolveNote        string
	resolveAttestation string
	confirmBatchWontfix bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <pattern>",
	Short: "Resolve every open finding matching pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveStatus, "status", "", "target status (fixed|wontfix|false_positive|auto_resolved)")
	resolveCmd.Flags().StringVar(&resolveNote, "note", "", "note recorded on each affected finding")
	resolveCmd.Flags().StringVar(&resolveAttestation, "attest", "", "attestation recorded in the audit log")
	resolveCmd.Flags().BoolVar(&confirmBatchWontfix, "confirm-batch-wontfix", false, "required to wontfix more than the configured batch threshold at once")
	resolveCmd.MarkFlagRequired("status")
}

var resolvableStatuses = map[finding.Status]bool{
	finding.StatusFixed:         true,
	finding.StatusWontfix:       true,
	finding.StatusFalsePositive: true,
	finding.StatusAutoResolved:  true,
}

func runResolve(cmd *cobra.Command, args []string) error {
	pattern := args[0]
	status := finding.Status(resolveStatus)
	if !resolvableStatuses[status] {
		return errs.Validationf("resolve", "status must be one of fixed, wontfix, false_positive, auto_resolved, got %q", resolveStatus)
	}
	if status == finding.StatusWontfix && resolveNote == "" {
		return errs.Validationf("resolve", "wontfix requires --note")
	}

	root, err := projectRoot()
	if err != nil {
		return err
	}
	proj, err := loadProject(root)
	if err != nil {
		return err
	}
	before := proj.scoreSnapshot()

	matches := proj.state.MatchFindings(pattern, finding.StatusOpen)
	if status == finding.StatusWontfix && len(matches) > proj.cfg.BatchWontfixConfirmThreshold && !confirmBatchWontfix {
		return errs.Validationf("resolve", "pattern %q matches %d open findings, exceeding the batch wontfix threshold (%d); rerun with --confirm-batch-wontfix", pattern, len(matches), proj.cfg.BatchWontfixConfirmThreshold)
	}

	res := proj.state.ResolveFindings(pattern, status, resolveNote, resolveAttestation, time.Now())
	if len(res.Affected) == 0 {
		return errs.Referentialf("resolve", "pattern %q matched no open findings", pattern)
	}

	if err := proj.save(); err != nil {
		return err
	}

	after := proj.scoreSnapshot()
	doc := query.New("resolve", after, &before).
		WithExtra("resolved", res.Affected).
		WithExtra("attestation", resolveAttestation)
	if werr := query.Write(root, doc); werr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to write query.json: %v\n", werr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "resolved %d finding(s) as %s — strict %.1f/100\n", len(res.Affected), status, after.Strict)
	return nil
}
