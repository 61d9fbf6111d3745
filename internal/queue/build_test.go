package queue

import (
	"testing"

	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

func TestBuildRejectsUnknownStatusFilter(t *testing.T) {
	s := finding.NewState()
	_, err := Build(s, detect.DefaultRegistry(), BuildOptions{Status: "bogus"})
	if err == nil {
		t.Error("expected an error for an unsupported status filter")
	}
}

func TestBuildDefaultsToOpenFindings(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen, Tier: 2}
	s.Findings["b"] = &finding.Finding{ID: "b", Detector: "unused_import", File: "y.go", Status: finding.StatusFixed, Tier: 2}

	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "a" {
		t.Fatalf("Items = %v, want only a", res.Items)
	}
}

func TestBuildReviewFindingsSortFirst(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen, Tier: 1}
	s.Findings["r"] = &finding.Finding{ID: "r", Detector: "review", File: "y.go", Status: finding.StatusOpen, Tier: 1, Confidence: finding.ConfidenceHigh}

	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Items) != 2 || res.Items[0].ID != "r" {
		t.Fatalf("Items = %v, want review finding r first", res.Items)
	}
}

func TestBuildFiltersByTierWithFallback(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen, Tier: 2}

	tier := 1
	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{Tier: &tier})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.FallbackReason == "" {
		t.Error("expected a fallback reason when the requested tier has no items")
	}
	if res.SelectedTier == nil || *res.SelectedTier != 2 {
		t.Errorf("SelectedTier = %v, want 2", res.SelectedTier)
	}
	if len(res.Items) != 1 {
		t.Errorf("Items = %v, want the fallback tier's item", res.Items)
	}
}

func TestBuildNoTierFallbackReturnsEmpty(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen, Tier: 2}

	tier := 1
	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{Tier: &tier, NoTierFallback: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("expected no items with NoTierFallback set, got %v", res.Items)
	}
	if res.FallbackReason == "" {
		t.Error("expected a fallback reason explaining the empty tier")
	}
}

func TestBuildCountLimitsItemsButNotTotal(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen, Tier: 2}
	s.Findings["b"] = &finding.Finding{ID: "b", Detector: "unused_import", File: "y.go", Status: finding.StatusOpen, Tier: 2}

	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{Count: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Items) != 1 {
		t.Errorf("Items = %v, want exactly 1", res.Items)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2 (unaffected by count)", res.Total)
	}
}

func TestBuildChronicOnlyIncludesRepeatedReopens(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "x.go", Status: finding.StatusOpen, ReopenCount: finding.ChronicThreshold}
	s.Findings["b"] = &finding.Finding{ID: "b", Detector: "unused_import", File: "y.go", Status: finding.StatusOpen, ReopenCount: 0}

	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{Chronic: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "a" {
		t.Fatalf("Items = %v, want only the chronic finding a", res.Items)
	}
}

func TestBuildIncludeSubjectiveAddsBelowThresholdDimensions(t *testing.T) {
	s := finding.NewState()
	s.SubjectiveAssessments["maintainability"] = finding.SubjectiveAssessment{Strict: 80}

	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{IncludeSubjective: true, SubjectiveThreshold: 95})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Items) != 1 || !res.Items[0].IsSubjective {
		t.Fatalf("Items = %v, want one subjective item", res.Items)
	}
}

func TestBuildScopeFiltersItems(t *testing.T) {
	s := finding.NewState()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "unused_import", File: "internal/cli/main.go", Status: finding.StatusOpen}
	s.Findings["b"] = &finding.Finding{ID: "b", Detector: "unused_import", File: "internal/score/score.go", Status: finding.StatusOpen}

	res, err := Build(s, detect.DefaultRegistry(), BuildOptions{Scope: "internal/cli"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "a" {
		t.Fatalf("Items = %v, want only a", res.Items)
	}
}
