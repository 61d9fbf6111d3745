package plan

import (
	"testing"
)

func TestValidateRejectsOverlapBetweenQueueAndSkipped(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a"}
	p.Skipped["a"] = SkipEntry{FindingID: "a", Kind: SkipTemporary}

	if err := Validate(p); err == nil {
		t.Error("expected an error when an id is both queued and skipped")
	}
}

func TestValidateRejectsUnknownSkipKind(t *testing.T) {
	p := Empty(ts(0))
	p.Skipped["a"] = SkipEntry{FindingID: "a", Kind: SkipKind("bogus")}

	if err := Validate(p); err == nil {
		t.Error("expected an error for an unrecognized skip kind")
	}
}

func TestValidateAcceptsAWellFormedPlan(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a"}
	p.Skipped["b"] = SkipEntry{FindingID: "b", Kind: SkipPermanent}

	if err := Validate(p); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnsureDefaultsFillsMissingContainers(t *testing.T) {
	p := &Plan{}
	EnsureDefaults(p)

	if p.Version != Version {
		t.Errorf("Version = %d, want %d", p.Version, Version)
	}
	if p.QueueOrder == nil || p.Skipped == nil || p.Overrides == nil || p.Clusters == nil || p.Superseded == nil {
		t.Error("expected EnsureDefaults to initialize every container")
	}
}

func TestEnsureDefaultsFillsNilClusterFindingIDs(t *testing.T) {
	p := Empty(ts(0))
	p.Clusters["refactor"] = Cluster{Name: "refactor"}

	EnsureDefaults(p)

	if p.Clusters["refactor"].FindingIDs == nil {
		t.Error("expected a nil FindingIDs slice to be initialized")
	}
}

func TestSynthesisClustersFiltersByEpicPrefix(t *testing.T) {
	p := Empty(ts(0))
	p.Clusters["refactor"] = Cluster{Name: "refactor"}
	p.Clusters["epic/cleanup"] = Cluster{Name: "epic/cleanup"}

	clusters := p.SynthesisClusters()
	if len(clusters) != 1 {
		t.Fatalf("SynthesisClusters() = %v, want 1 entry", clusters)
	}
	if _, ok := clusters["epic/cleanup"]; !ok {
		t.Error("expected epic/cleanup to be the only synthesis cluster")
	}
}

func TestSaveThenLoadRoundTripsPlan(t *testing.T) {
	dir := t.TempDir()
	p := Empty(ts(0))
	p.QueueOrder = []string{"a", "b"}
	p.Clusters["refactor"] = Cluster{Name: "refactor", FindingIDs: []string{"a"}}

	if err := Save(dir, p, ts(5)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir, ts(6))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !equalSlices(loaded.QueueOrder, p.QueueOrder) {
		t.Errorf("QueueOrder = %v, want %v", loaded.QueueOrder, p.QueueOrder)
	}
	if len(loaded.Clusters) != 1 {
		t.Errorf("Clusters = %v, want 1 entry", loaded.Clusters)
	}
}

func TestLoadOnEmptyProjectReturnsFreshPlan(t *testing.T) {
	dir := t.TempDir()
	p, err := Load(dir, ts(0))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.QueueOrder) != 0 {
		t.Error("expected an empty QueueOrder on first load")
	}
	if p.Version != Version {
		t.Errorf("Version = %d, want %d", p.Version, Version)
	}
}
