package synthesis

import (
	"strings"
	"testing"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
)

func longReport(n int) string {
	return strings.Repeat("x", n)
}

func queuedPlan() *plan.Plan {
	p := plan.Empty(time.Unix(0, 0))
	p.QueueOrder = []string{plan.SynthesisPendingID}
	return p
}

func TestObserveRequiresSynthesisQueued(t *testing.T) {
	p := plan.Empty(time.Unix(0, 0))
	s := finding.NewState()
	_, err := Observe(p, s, longReport(100), time.Unix(1, 0))
	if err == nil {
		t.Error("expected an error when synthesis::pending is not queued")
	}
}

func TestObserveRejectsShortReportWhenFindingsExist(t *testing.T) {
	p := queuedPlan()
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "review", Status: finding.StatusOpen}

	_, err := Observe(p, s, "too short", time.Unix(1, 0))
	if err == nil {
		t.Error("expected an error for a report below the length floor")
	}
}

func TestObserveRecordsCitedIDs(t *testing.T) {
	p := queuedPlan()
	s := finding.NewState()
	s.Findings["review::x.go::abcdef12"] = &finding.Finding{ID: "review::x.go::abcdef12", Detector: "review", Status: finding.StatusOpen}

	rec, err := Observe(p, s, longReport(100)+" review::x.go::abcdef12", time.Unix(1, 0))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(rec.CitedIDs) != 1 {
		t.Errorf("CitedIDs = %v, want 1", rec.CitedIDs)
	}
}

func TestReflectRequiresObserveFirst(t *testing.T) {
	p := queuedPlan()
	s := finding.NewState()
	_, err := Reflect(p, s, longReport(100), time.Unix(1, 0))
	if err == nil {
		t.Error("expected an error when observe has not run")
	}
}

func TestReflectRequiresMentioningRecurringDimension(t *testing.T) {
	p := queuedPlan()
	s := finding.NewState()
	s.Findings["open"] = &finding.Finding{ID: "open", Detector: "review", Status: finding.StatusOpen, Detail: map[string]any{"dimension": "security"}}
	Observe(p, s, longReport(100), time.Unix(1, 0))

	p.EpicSynthesisMeta["synthesized_ids"] = []any{"resolved"}
	s.Findings["resolved"] = &finding.Finding{ID: "resolved", Detector: "review", Status: finding.StatusFixed, Detail: map[string]any{"dimension": "security"}}

	_, err := Reflect(p, s, longReport(100), time.Unix(2, 0))
	if err == nil {
		t.Error("expected an error when a recurring dimension goes unmentioned")
	}

	_, err = Reflect(p, s, longReport(100)+" security issues recur", time.Unix(2, 0))
	if err != nil {
		t.Errorf("expected success once the recurring dimension is mentioned: %v", err)
	}
}

func TestOrganizeRequiresReflectFirst(t *testing.T) {
	p := queuedPlan()
	s := finding.NewState()
	Observe(p, s, longReport(100), time.Unix(1, 0))

	_, err := Organize(p, longReport(100), time.Unix(2, 0))
	if err == nil {
		t.Error("expected an error when reflect has not run")
	}
}

func TestOrganizeRequiresManualClustersWithEnrichment(t *testing.T) {
	p := queuedPlan()
	s := finding.NewState()
	Observe(p, s, longReport(100), time.Unix(1, 0))
	Reflect(p, s, longReport(100), time.Unix(2, 0))

	if _, err := Organize(p, longReport(100), time.Unix(3, 0)); err == nil {
		t.Error("expected an error when no clusters exist")
	}

	p.Clusters["refactor"] = plan.Cluster{Name: "refactor", FindingIDs: []string{"a"}}
	if _, err := Organize(p, longReport(100), time.Unix(3, 0)); err == nil {
		t.Error("expected an error when the cluster is missing description/action_steps")
	}

	p.Clusters["refactor"] = plan.Cluster{
		Name: "refactor", FindingIDs: []string{"a"},
		Description: "root cause analysis", ActionSteps: []string{"step one"},
	}
	if _, err := Organize(p, longReport(100), time.Unix(3, 0)); err != nil {
		t.Errorf("Organize: %v", err)
	}
}

func fullyStagedPlan(s *finding.State) *plan.Plan {
	p := queuedPlan()
	Observe(p, s, longReport(100), time.Unix(1, 0))
	Reflect(p, s, longReport(100), time.Unix(2, 0))
	p.Clusters["refactor"] = plan.Cluster{
		Name: "refactor", FindingIDs: []string{"a"},
		Description: "root cause analysis", ActionSteps: []string{"step one"},
	}
	Organize(p, longReport(100), time.Unix(3, 0))
	return p
}

func TestCompleteRemovesSynthesisPendingAndSnapshotsIDs(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "review", Status: finding.StatusOpen}
	p := fullyStagedPlan(s)

	summary, err := Complete(p, s, longReport(200), time.Unix(4, 0))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if summary.ClusterCount != 1 {
		t.Errorf("ClusterCount = %d, want 1", summary.ClusterCount)
	}
	for _, id := range p.QueueOrder {
		if id == plan.SynthesisPendingID {
			t.Fatal("expected synthesis::pending removed from the queue")
		}
	}
	ids, _ := p.EpicSynthesisMeta["synthesized_ids"].([]any)
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("synthesized_ids = %v, want [a]", ids)
	}
}

func TestCompleteRejectsShortStrategy(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "review", Status: finding.StatusOpen}
	p := fullyStagedPlan(s)

	_, err := Complete(p, s, "too short", time.Unix(4, 0))
	if err == nil {
		t.Error("expected an error for a strategy under the length floor")
	}
}

func TestCompleteAcceptsSameStrategyShortcut(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "review", Status: finding.StatusOpen}
	p := fullyStagedPlan(s)
	p.EpicSynthesisMeta["strategy_summary"] = "previously recorded strategy"

	_, err := Complete(p, s, "same", time.Unix(4, 0))
	if err != nil {
		t.Errorf("expected 'same' to bypass the length floor: %v", err)
	}
}

func TestConfirmExistingRequiresPriorStrategy(t *testing.T) {
	s := finding.NewState()
	p := queuedPlan()
	Observe(p, s, longReport(100), time.Unix(1, 0))
	Reflect(p, s, longReport(100), time.Unix(2, 0))

	_, err := ConfirmExisting(p, s, longReport(100), longReport(200), time.Unix(3, 0))
	if err == nil {
		t.Error("expected an error when no prior synthesis strategy has been recorded")
	}
}

func TestConfirmExistingRequiresCitingNewFindings(t *testing.T) {
	s := finding.NewState()
	p := queuedPlan()
	Observe(p, s, longReport(100), time.Unix(1, 0))
	Reflect(p, s, longReport(100), time.Unix(2, 0))
	p.EpicSynthesisMeta["strategy_summary"] = "established strategy"
	p.Clusters["refactor"] = plan.Cluster{Name: "refactor", FindingIDs: []string{"a"}}

	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "review", Status: finding.StatusOpen}

	_, err := ConfirmExisting(p, s, longReport(100), "same", time.Unix(3, 0))
	if err == nil {
		t.Error("expected an error when the note fails to cite the new finding")
	}
}
