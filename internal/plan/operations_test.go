package plan

import (
	"testing"
	"time"
)

func ts(offset int64) time.Time { return time.Unix(1700000000+offset, 0).UTC() }

func TestMoveItemsTopAndBottom(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a", "b", "c"}

	MoveItems(p, []string{"c"}, Position{Kind: "top"})
	if p.QueueOrder[0] != "c" {
		t.Errorf("QueueOrder = %v, want c first", p.QueueOrder)
	}

	MoveItems(p, []string{"c"}, Position{Kind: "bottom"})
	if p.QueueOrder[len(p.QueueOrder)-1] != "c" {
		t.Errorf("QueueOrder = %v, want c last", p.QueueOrder)
	}
}

func TestMoveItemsBeforeAndAfter(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a", "b", "c"}

	MoveItems(p, []string{"a"}, Position{Kind: "after", Target: "b"})
	want := []string{"b", "a", "c"}
	if !equalSlices(p.QueueOrder, want) {
		t.Errorf("QueueOrder = %v, want %v", p.QueueOrder, want)
	}

	MoveItems(p, []string{"c"}, Position{Kind: "before", Target: "b"})
	want = []string{"c", "b", "a"}
	if !equalSlices(p.QueueOrder, want) {
		t.Errorf("QueueOrder = %v, want %v", p.QueueOrder, want)
	}
}

func TestMoveItemsRemovesFromSkipped(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a"}
	p.Skipped["b"] = SkipEntry{FindingID: "b", Kind: SkipTemporary}

	MoveItems(p, []string{"b"}, Position{Kind: "top"})
	if _, ok := p.Skipped["b"]; ok {
		t.Error("expected b to be removed from Skipped")
	}
	if p.QueueOrder[0] != "b" {
		t.Errorf("QueueOrder = %v, want b first", p.QueueOrder)
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSkipItemsRequiresNoteAndAttestForPermanent(t *testing.T) {
	p := Empty(ts(0))
	_, err := SkipItems(p, []string{"a"}, SkipOptions{Kind: SkipPermanent}, ts(1))
	if err == nil {
		t.Fatal("expected an error for a permanent skip with no note/attest")
	}

	_, err = SkipItems(p, []string{"a"}, SkipOptions{Kind: SkipPermanent, Note: "why", Attestation: "who"}, ts(1))
	if err != nil {
		t.Fatalf("expected a valid permanent skip to succeed: %v", err)
	}
	if _, ok := p.Skipped["a"]; !ok {
		t.Error("expected a to be recorded in Skipped")
	}
}

func TestSkipItemsRequiresAttestForFalsePositive(t *testing.T) {
	p := Empty(ts(0))
	_, err := SkipItems(p, []string{"a"}, SkipOptions{Kind: SkipFalsePositive}, ts(1))
	if err == nil {
		t.Fatal("expected an error for a false_positive skip with no attest")
	}
}

func TestSkipItemsTemporaryRequiresNothing(t *testing.T) {
	p := Empty(ts(0))
	count, err := SkipItems(p, []string{"a", "b"}, SkipOptions{Kind: SkipTemporary}, ts(1))
	if err != nil {
		t.Fatalf("SkipItems: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestUnskipItemsReturnsIDsNeedingReopen(t *testing.T) {
	p := Empty(ts(0))
	SkipItems(p, []string{"a"}, SkipOptions{Kind: SkipPermanent, Note: "n", Attestation: "a"}, ts(1))
	SkipItems(p, []string{"b"}, SkipOptions{Kind: SkipTemporary}, ts(1))

	count, needReopen := UnskipItems(p, []string{"a", "b"})
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(needReopen) != 1 || needReopen[0] != "a" {
		t.Errorf("needReopen = %v, want [a]", needReopen)
	}
	if !contains(p.QueueOrder, "a") || !contains(p.QueueOrder, "b") {
		t.Errorf("expected both ids back in QueueOrder: %v", p.QueueOrder)
	}
}

func TestResurfaceStaleSkipsOnlyPastThreshold(t *testing.T) {
	p := Empty(ts(0))
	SkipItems(p, []string{"a"}, SkipOptions{Kind: SkipTemporary, ReviewAfter: 2, ScanCount: 5}, ts(1))

	if got := ResurfaceStaleSkips(p, 6); len(got) != 0 {
		t.Errorf("expected no resurface before threshold, got %v", got)
	}
	if got := ResurfaceStaleSkips(p, 7); len(got) != 1 {
		t.Errorf("expected a at threshold to resurface, got %v", got)
	}
}

func TestDescribeAndAnnotateFindingCreateOverride(t *testing.T) {
	p := Empty(ts(0))
	DescribeFinding(p, "a", "does the thing", ts(1))
	AnnotateFinding(p, "a", "keep an eye on this", ts(2))

	ov := p.Overrides["a"]
	if ov.Description != "does the thing" || ov.Note != "keep an eye on this" {
		t.Errorf("override = %+v", ov)
	}
}

func TestCreateClusterRejectsAutoPrefixAndDuplicates(t *testing.T) {
	p := Empty(ts(0))
	if _, err := CreateCluster(p, "auto/foo", "", "", ts(1)); err == nil {
		t.Error("expected an error for an auto/-prefixed manual cluster name")
	}
	if _, err := CreateCluster(p, "refactor", "desc", "", ts(1)); err != nil {
		t.Fatalf("CreateCluster: %v", err)
	}
	if _, err := CreateCluster(p, "refactor", "desc", "", ts(1)); err == nil {
		t.Error("expected an error creating a duplicate cluster")
	}
}

func TestRemoveFromClusterMarksUserModifiedWhenAuto(t *testing.T) {
	p := Empty(ts(0))
	p.Clusters["auto/dup"] = Cluster{Name: "auto/dup", Auto: true, FindingIDs: []string{"a", "b"}}

	if _, err := RemoveFromCluster(p, "auto/dup", []string{"a"}, ts(1)); err != nil {
		t.Fatalf("RemoveFromCluster: %v", err)
	}
	c := p.Clusters["auto/dup"]
	if !c.UserModified {
		t.Error("expected UserModified set after removing a member from an auto cluster")
	}
	if contains(c.FindingIDs, "a") {
		t.Error("expected a removed from FindingIDs")
	}
}

func TestAddToClusterRequiresExistingCluster(t *testing.T) {
	p := Empty(ts(0))
	if _, err := AddToCluster(p, "missing", []string{"a"}, ts(1)); err == nil {
		t.Error("expected an error adding to a nonexistent cluster")
	}
}

func TestDeleteClusterOrphansMembersAndClearsFocus(t *testing.T) {
	p := Empty(ts(0))
	CreateCluster(p, "refactor", "", "", ts(0))
	AddToCluster(p, "refactor", []string{"a"}, ts(1))
	SetFocus(p, "refactor")

	orphaned, err := DeleteCluster(p, "refactor", ts(2))
	if err != nil {
		t.Fatalf("DeleteCluster: %v", err)
	}
	if len(orphaned) != 1 || orphaned[0] != "a" {
		t.Errorf("orphaned = %v, want [a]", orphaned)
	}
	if p.ActiveCluster != "" {
		t.Error("expected ActiveCluster cleared when its cluster is deleted")
	}
	if p.Overrides["a"].Cluster != "" {
		t.Error("expected a's override cluster reference cleared")
	}
}

func TestSetFocusRequiresExistingCluster(t *testing.T) {
	p := Empty(ts(0))
	if err := SetFocus(p, "missing"); err == nil {
		t.Error("expected an error focusing a nonexistent cluster")
	}
}

func TestMoveClusterMovesAllMembersTogether(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"x", "a", "b", "y"}
	p.Clusters["refactor"] = Cluster{Name: "refactor", FindingIDs: []string{"a", "b"}}

	count, err := MoveCluster(p, "refactor", Position{Kind: "top"})
	if err != nil {
		t.Fatalf("MoveCluster: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if p.QueueOrder[0] != "a" || p.QueueOrder[1] != "b" {
		t.Errorf("QueueOrder = %v, want [a b ...]", p.QueueOrder)
	}
}

func TestResetPreservesCreatedTimestamp(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a"}
	created := p.Created

	Reset(p, ts(10))

	if len(p.QueueOrder) != 0 {
		t.Errorf("expected QueueOrder cleared, got %v", p.QueueOrder)
	}
	if p.Created != created {
		t.Errorf("Created = %v, want preserved %v", p.Created, created)
	}
}

func TestPurgeIDsRemovesFromQueueSkippedAndClusters(t *testing.T) {
	p := Empty(ts(0))
	p.QueueOrder = []string{"a", "b"}
	p.Skipped["c"] = SkipEntry{FindingID: "c", Kind: SkipTemporary}
	p.Clusters["refactor"] = Cluster{Name: "refactor", FindingIDs: []string{"a", "d"}}

	found := PurgeIDs(p, []string{"a", "c", "z"})
	if found != 2 {
		t.Errorf("found = %d, want 2", found)
	}
	if contains(p.QueueOrder, "a") {
		t.Error("expected a removed from QueueOrder")
	}
	if _, ok := p.Skipped["c"]; ok {
		t.Error("expected c removed from Skipped")
	}
	if contains(p.Clusters["refactor"].FindingIDs, "a") {
		t.Error("expected a removed from the cluster")
	}
}
