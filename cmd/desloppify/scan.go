package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/cluster"
	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
	"github.com/theRebelliousNerd/desloppify/internal/queue"
	"github.com/theRebelliousNerd/desloppify/internal/query"
	"github.com/theRebelliousNerd/desloppify/internal/score"
	"github.com/theRebelliousNerd/desloppify/internal/synthesis"
	"github.com/theRebelliousNerd/desloppify/internal/zone"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Run detectors, merge findings, and recompute scores",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

// builtinDetectors lists the in-process detectors this core ships and the
// only detectors a scan runs; most registry entries (see
// detect.DefaultRegistry) describe external collaborators, and scan has no
// path that imports their results.
func builtinDetectors() []detect.Detector {
	return []detect.Detector{detect.UnusedImportDetector{}}
}

func runScan(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	proj, err := loadProject(root)
	if err != nil {
		return err
	}
	before := proj.scoreSnapshot()

	files, err := discoverFiles(root, proj.cfg.Exclude)
	if err != nil {
		return err
	}
	zones := zone.BuildIndex(files, proj.cfg.Zones)

	detectors := builtinDetectors()
	results, err := detect.RunAll(cmd.Context(), root, files, detectors, proj.registry, zones)
	if err != nil {
		return err
	}

	now := time.Now()
	proj.state.ScanCount++
	checks := map[string]float64{}
	var newCount, reopenCount, resolvedCount int
	for _, r := range results {
		converted := make([]finding.Finding, 0, len(r.Findings))
		for _, f := range r.Findings {
			converted = append(converted, finding.Finding{
				ID: f.ID, Detector: r.Detector, File: f.File, Line: f.Line,
				Tier: f.Tier, Confidence: f.Confidence, Summary: f.Summary,
				Detail: f.Detail, Lang: f.Lang,
			})
		}
		merged := proj.state.Merge(r.Detector, converted, now)
		newCount += len(merged.New)
		reopenCount += len(merged.Reopened)
		resolvedCount += len(merged.Resolved)

		// Per-detector scanned_count as the dimension's check weight; the
		// review detector's per-finding dimension override doesn't apply
		// here since no finding is in hand yet, so its scanned files count
		// against its own detector name rather than each concern it might
		// flag — close enough for a check-weight denominator.
		dim := score.DimensionKey(proj.registry, &finding.Finding{Detector: r.Detector})
		checks[dim] += float64(len(scopedFilesFor(files, zones, proj.registry, r.Detector)))
	}

	proj.state.ApplySuppression(proj.cfg.Ignore)
	reconcile := plan.ReconcileAfterScan(proj.plan, proj.state, proj.state.ScanCount, proj.cfg.SupersededTTLDays)
	cluster.Regenerate(proj.plan, proj.state, proj.registry, proj.cfg.MinClusterSize, subjectiveClassifier(proj.state))
	synthesis.SyncUnscoredDimensions(proj.plan, proj.state)
	synthesis.SyncStaleDimensions(proj.plan, proj.state)
	synthesis.SyncSynthesisNeeded(proj.plan, proj.state)

	_, after := score.Compute(proj.state, proj.registry, checks)
	remaining, _ := queue.PlanAwareQueueCount(proj.state, proj.registry, proj.plan)
	proj.plan.FreezeScoresIfCycleStarting(after.Overall, after.Objective, after.Strict, after.Verified, remaining)
	proj.plan.ClearScoresIfDrained(remaining)

	if err := proj.save(); err != nil {
		return err
	}

	doc := query.New("scan", after, &before).
		WithExtra("new", newCount).
		WithExtra("reopened", reopenCount).
		WithExtra("resolved", resolvedCount).
		WithExtra("superseded", len(reconcile.Superseded))
	if werr := query.Write(root, doc); werr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to write query.json: %v\n", werr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scan complete: %d new, %d reopened, %d resolved — strict %.1f/100\n",
		newCount, reopenCount, resolvedCount, after.Strict)
	return nil
}

func scopedFilesFor(files []string, zones zone.Index, registry detect.Registry, detectorName string) []string {
	meta, _ := registry.Get(detectorName)
	excluded := map[zone.Zone]bool{}
	for _, z := range meta.ExcludedZones {
		excluded[zone.Zone(z)] = true
	}
	eligible := map[zone.Zone]bool{}
	for _, z := range zone.All() {
		if !excluded[z] {
			eligible[z] = true
		}
	}
	return zone.FilterEligible(files, zones, eligible)
}

func subjectiveClassifier(s *finding.State) cluster.SubjectiveClassifier {
	unscored := map[string]bool{}
	for dim, a := range s.SubjectiveAssessments {
		if dim == "" || !a.Placeholder {
			continue
		}
		unscored[plan.SubjectivePrefix+queue.Slugify(dim)] = true
	}
	return func(id string) bool { return unscored[id] }
}
