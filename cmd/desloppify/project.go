package main

import (
	"path/filepath"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/config"
	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/persist"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
	"github.com/theRebelliousNerd/desloppify/internal/score"
)

// project bundles the three on-disk documents plus the static registry
// every command operates against, loaded once per invocation.
type project struct {
	root     string
	cfg      config.Config
	state    *finding.State
	plan     *plan.Plan
	registry detect.Registry
}

func loadProject(root string) (*project, error) {
	if err := persist.NewJournal(filepath.Join(root, ".desloppify")).Recover(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := finding.Load(root)
	if err != nil {
		return nil, err
	}
	p, err := plan.Load(root, time.Now())
	if err != nil {
		return nil, err
	}
	// Re-derive Suppressed against the current ignore list on every load, not
	// only after a scan, so editing config.json's ignore patterns takes
	// effect on the next command instead of waiting for a rescan.
	s.ApplySuppression(cfg.Ignore)
	return &project{root: root, cfg: cfg, state: s, plan: p, registry: detect.DefaultRegistry()}, nil
}

// save persists state and plan as a single transaction via internal/persist's
// journal, so a process killed mid-write never leaves one document updated
// and the other stale (plan.Load reconciles against whatever state.json
// already holds, so the two must move together).
func (p *project) save() error {
	now := time.Now()
	p.state.Updated = now
	p.plan.Updated = now
	j := persist.NewJournal(filepath.Join(p.root, ".desloppify"))
	return j.Commit(
		persist.Write{Path: finding.Path(p.root), Value: p.state},
		persist.Write{Path: plan.Path(p.root), Value: p.plan},
	)
}

// scoreSnapshot runs the score engine against the project's current state.
// Commands that didn't just scan (status, next, plan edits) have no fresh
// scanned_count to hand the score engine, so they fall back to counting
// every finding the dimension has ever produced (open or resolved) as its
// check weight — a resolved finding stands in for "a check that now
// passes". The scan command instead supplies the real per-detector
// scanned_count it just observed (see scan.go).
func (p *project) scoreSnapshot() score.Snapshot {
	_, snap := score.Compute(p.state, p.registry, p.checksFallback())
	return snap
}

func (p *project) checksFallback() map[string]float64 {
	checks := map[string]float64{}
	for _, f := range p.state.Findings {
		dim := score.DimensionKey(p.registry, f)
		checks[dim]++
	}
	return checks
}
