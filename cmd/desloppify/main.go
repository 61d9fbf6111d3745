// Package main implements the desloppify CLI — the cobra command tree
// driving scans, resolutions, plan edits, and the work-queue selector
// against a single project's .desloppify/ state directory.
//
// Command implementations are split across files by area:
//
//	main.go     - entry point, rootCmd, global flags, persistent hooks
//	scan.go     - scanCmd, detector fan-out
//	fileutil.go - file discovery
//	resolve.go  - resolveCmd
//	plan_cmd.go - planCmd and its skip/unskip/move/cluster/describe/note/synthesize subcommands
//	next.go     - nextCmd (work-queue selector)
//	status.go   - statusCmd
//	review.go   - reviewCmd (subjective-assessment ingest)
//	config_cmd.go - configCmd get/set/ignore
//	show.go     - showCmd (finding listing with noise-budget display)
//	project.go  - shared load/save-everything helpers
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/logging"
)

var (
	verbose   bool
	workspace string
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "desloppify",
	Short: "A repository-scoped code-health auditor",
	Long: `desloppify runs a bank of detectors over a source tree, projects the
findings and a small set of subjective review scores into a
multi-dimensional scorecard, and maintains a persistent work plan that
survives across scans.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "project root (default: current directory)")

	rootCmd.AddCommand(
		scanCmd,
		resolveCmd,
		planCmd,
		nextCmd,
		statusCmd,
		reviewCmd,
		configCmd,
		showCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var e *errs.Error
		if errors.As(err, &e) && !e.Fatal() {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func projectRoot() (string, error) {
	if workspace != "" {
		return workspace, nil
	}
	return os.Getwd()
}
