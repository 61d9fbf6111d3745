package plan

import (
	"testing"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

func TestReconcileAfterScanSupersedesDeadReferences(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a", "b"}

	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen}
	// b is referenced by the plan but absent from the finding store entirely.

	result := ReconcileAfterScan(p, s, 1, 90)

	if len(result.Superseded) != 1 || result.Superseded[0] != "b" {
		t.Fatalf("Superseded = %v, want [b]", result.Superseded)
	}
	if contains(p.QueueOrder, "b") {
		t.Error("expected b removed from QueueOrder once superseded")
	}
	if _, ok := p.Superseded["b"]; !ok {
		t.Error("expected a Superseded entry recorded for b")
	}
}

func TestReconcileAfterScanSupersedesResolvedFindings(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a"}

	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusFixed}

	result := ReconcileAfterScan(p, s, 1, 90)

	if len(result.Superseded) != 1 {
		t.Fatalf("Superseded = %v, want [a]", result.Superseded)
	}
}

func TestReconcileAfterScanIgnoresSyntheticIDs(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{SubjectivePrefix + "maintainability", SynthesisPendingID}

	s := finding.NewState()
	result := ReconcileAfterScan(p, s, 1, 90)

	if len(result.Superseded) != 0 {
		t.Errorf("expected synthetic ids left untouched, got %v", result.Superseded)
	}
	if !contains(p.QueueOrder, SynthesisPendingID) {
		t.Error("expected the synthesis pending marker to remain queued")
	}
}

func TestReconcileAfterScanResurfacesStaleSkips(t *testing.T) {
	p := Empty(ts(0))
	SkipItems(p, []string{"a"}, SkipOptions{Kind: SkipTemporary, ReviewAfter: 1, ScanCount: 3}, ts(1))

	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen}

	result := ReconcileAfterScan(p, s, 5, 90)

	if len(result.Resurfaced) != 1 || result.Resurfaced[0] != "a" {
		t.Fatalf("Resurfaced = %v, want [a]", result.Resurfaced)
	}
	if _, ok := p.Skipped["a"]; ok {
		t.Error("expected a removed from Skipped once resurfaced")
	}
}

func TestReconcileAfterScanPrunesOldSupersededEntries(t *testing.T) {
	p := Empty(ts(0))
	old := time.Now().UTC().AddDate(0, 0, -200)
	p.Superseded["stale"] = SupersededEntry{OriginalID: "stale", Status: "superseded", SupersededAt: old}
	p.Overrides["stale"] = ItemOverride{FindingID: "stale", Note: "old note"}

	s := finding.NewState()
	result := ReconcileAfterScan(p, s, 1, 90)

	if len(result.Pruned) != 1 || result.Pruned[0] != "stale" {
		t.Fatalf("Pruned = %v, want [stale]", result.Pruned)
	}
	if _, ok := p.Superseded["stale"]; ok {
		t.Error("expected the stale Superseded entry removed")
	}
	if _, ok := p.Overrides["stale"]; ok {
		t.Error("expected the stale entry's override removed alongside it")
	}
}

func TestReconcileAfterScanKeepsRecentSupersededEntries(t *testing.T) {
	p := Empty(ts(0))
	recent := time.Now().UTC().AddDate(0, 0, -1)
	p.Superseded["fresh"] = SupersededEntry{OriginalID: "fresh", Status: "superseded", SupersededAt: recent}

	s := finding.NewState()
	result := ReconcileAfterScan(p, s, 1, 90)

	if len(result.Pruned) != 0 {
		t.Errorf("expected no pruning of a recent entry, got %v", result.Pruned)
	}
	if _, ok := p.Superseded["fresh"]; !ok {
		t.Error("expected the fresh Superseded entry to remain")
	}
}

func TestReconcileAfterScanRecordsSupersedeCandidates(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"dead"}

	s := finding.NewState()
	s.Findings["dead"] = &finding.Finding{ID: "dead", Detector: "unused_import", File: "x.go", Status: finding.StatusFixed}
	s.Findings["alive"] = &finding.Finding{ID: "alive", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen}

	ReconcileAfterScan(p, s, 1, 90)

	entry := p.Superseded["dead"]
	if len(entry.Candidates) != 1 || entry.Candidates[0] != "alive" {
		t.Errorf("Candidates = %v, want [alive]", entry.Candidates)
	}
}
