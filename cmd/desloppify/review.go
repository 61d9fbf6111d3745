package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Ingest subjective review scores",
}

var reviewImportFile string

var reviewImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a subjective-assessment JSON payload into state",
	Args:  cobra.NoArgs,
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		r, err := reviewImportReader()
		if err != nil {
			return err
		}
		defer r.Close()

		var payload map[string]finding.SubjectiveAssessment
		if err := json.NewDecoder(r).Decode(&payload); err != nil {
			return errs.Validationf("review.import", "invalid subjective assessment payload: %v", err)
		}
		if len(payload) == 0 {
			return errs.Validationf("review.import", "payload contained no dimensions")
		}

		if proj.state.SubjectiveAssessments == nil {
			proj.state.SubjectiveAssessments = map[string]finding.SubjectiveAssessment{}
		}
		for dim, assessment := range payload {
			assessment.Placeholder = false
			assessment.NeedsReviewRefresh = false
			proj.state.SubjectiveAssessments[dim] = assessment
		}
		if err := proj.save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d subjective dimension(s)\n", len(payload))
		return nil
	}),
}

func init() {
	reviewCmd.AddCommand(reviewImportCmd)
	reviewImportCmd.Flags().StringVar(&reviewImportFile, "file", "", "payload file (default: stdin)")
}

func reviewImportReader() (io.ReadCloser, error) {
	if reviewImportFile == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(reviewImportFile)
	if err != nil {
		return nil, errs.Referentialf("review.import", "open %s: %v", reviewImportFile, err)
	}
	return f, nil
}
