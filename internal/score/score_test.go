package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

func TestComputeFreshScanOneOpenFindingScoresBelow100(t *testing.T) {
	s := finding.NewState()
	now := time.Now()
	s.Findings["unused_import::src/a.py::os"] = &finding.Finding{
		ID: "unused_import::src/a.py::os", Detector: "unused_import",
		File: "src/a.py", Status: finding.StatusOpen, FirstSeen: now, LastSeen: now,
	}

	registry := detect.DefaultRegistry()
	dims, snap := Compute(s, registry, map[string]float64{"Hygiene": 10})

	require.Equal(t, 1, dims["Hygiene"].Issues)
	require.Less(t, snap.Strict, 100.0)
	require.Less(t, snap.Overall, 100.0)
}

func TestComputeResolvedFindingRestoresStrictScore(t *testing.T) {
	s := finding.NewState()
	now := time.Now()
	s.Findings["unused_import::src/a.py::os"] = &finding.Finding{
		ID: "unused_import::src/a.py::os", Detector: "unused_import",
		File: "src/a.py", Status: finding.StatusFixed, FirstSeen: now, LastSeen: now,
	}

	registry := detect.DefaultRegistry()
	_, snap := Compute(s, registry, map[string]float64{"Hygiene": 10})
	require.Equal(t, 100.0, snap.Strict)
}

func TestComputeStrictCountsWontfixAndSuppressedAsIssues(t *testing.T) {
	s := finding.NewState()
	now := time.Now()
	s.Findings["a"] = &finding.Finding{ID: "a", Detector: "smells", Status: finding.StatusWontfix, FirstSeen: now, LastSeen: now}
	s.Findings["b"] = &finding.Finding{ID: "b", Detector: "smells", Status: finding.StatusOpen, Suppressed: true, FirstSeen: now, LastSeen: now}

	registry := detect.DefaultRegistry()
	dims, snap := Compute(s, registry, map[string]float64{"Code smells": 10})

	require.Equal(t, 0, dims["Code smells"].Issues) // lenient: wontfix excluded, suppressed excluded
	require.Less(t, dims["Code smells"].Strict, dims["Code smells"].Score)
	require.Less(t, snap.Strict, snap.Objective)
}

func TestComputeVerifiedRequiresScanConfirmation(t *testing.T) {
	s := finding.NewState()
	now := time.Now()
	f := &finding.Finding{ID: "a", Detector: "smells", Status: finding.StatusFixed, FirstSeen: now, LastSeen: now}
	s.Findings["a"] = f

	registry := detect.DefaultRegistry()
	_, unverified := Compute(s, registry, map[string]float64{"Code smells": 10})
	require.Less(t, unverified.Verified, unverified.Strict)

	f.ScanVerified = true
	_, verified := Compute(s, registry, map[string]float64{"Code smells": 10})
	require.Equal(t, verified.Strict, verified.Verified)
}

func TestComputeReviewFindingsGroupByPerFindingDimension(t *testing.T) {
	s := finding.NewState()
	now := time.Now()
	s.Findings["review::a"] = &finding.Finding{
		ID: "review::a", Detector: "review", Status: finding.StatusOpen,
		Detail: map[string]any{"dimension": "clarity"}, FirstSeen: now, LastSeen: now,
	}

	registry := detect.DefaultRegistry()
	dims, _ := Compute(s, registry, map[string]float64{"clarity": 5})
	require.Equal(t, 1, dims["clarity"].Issues)
	require.Contains(t, dims["clarity"].Detectors, "review")
}

func TestComputeEmptyStateScoresPerfect(t *testing.T) {
	s := finding.NewState()
	_, snap := Compute(s, detect.DefaultRegistry(), nil)
	require.Equal(t, Snapshot{Overall: 100, Objective: 100, Strict: 100, Verified: 100}, snap)
}

func TestComputeSubjectiveAssessmentsFeedSixtyPercentPool(t *testing.T) {
	s := finding.NewState()
	s.SubjectiveAssessments["naming"] = finding.SubjectiveAssessment{Score: 50, Strict: 50}

	_, snap := Compute(s, detect.DefaultRegistry(), nil)
	require.InDelta(t, 0.4*100+0.6*50, snap.Overall, 0.001)
	require.Equal(t, 100.0, snap.Objective)
}
