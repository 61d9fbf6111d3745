// Package score implements the scoring algorithm behind state.score_snapshot:
// per-dimension mechanical scores derived from open
// issue counts against a check count, subjective dimension scores read
// straight from the review side-table, and the four aggregate scores
// (overall, objective, strict, verified) the rest of the tool reports.
package score

import (
	"sort"

	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

// Dimension is one mechanical scoring bucket's current standing, matching
// the state.json dimension_scores shape: display_name -> {score, strict,
// issues, checks, tier, detectors}.
type Dimension struct {
	Score     float64  `json:"score"`
	Strict    float64  `json:"strict"`
	Issues    int      `json:"issues"`
	Checks    float64  `json:"checks"`
	Detectors []string `json:"detectors"`
}

// Snapshot is the four canonical scores, each in [0, 100].
type Snapshot struct {
	Overall   float64 `json:"overall"`
	Objective float64 `json:"objective"`
	Strict    float64 `json:"strict"`
	Verified  float64 `json:"verified"`
}

// mechanicalWeight is the pool split for the overall score: 40% mechanical
// pool, 60% subjective pool.
const mechanicalWeight = 0.4

// dimensionKey resolves the scoring bucket a finding rolls up into: the
// review detector carries a per-finding dimension in Detail (each review
// check names its own concern, e.g. "clarity"); every other detector rolls
// up into its registry-declared Dimension, falling back to the detector
// name itself for unregistered/external detectors.
// DimensionKey is the exported form of dimensionKey, for callers (the scan
// and status commands) that need to group findings by scoring dimension
// outside of Compute itself — e.g. to build a checks map from each
// detector's own scanned_count.
func DimensionKey(registry detect.Registry, f *finding.Finding) string {
	return dimensionKey(registry, f)
}

func dimensionKey(registry detect.Registry, f *finding.Finding) string {
	if f.Detector == "review" {
		if d, ok := f.Detail["dimension"].(string); ok && d != "" {
			return d
		}
	}
	if meta, ok := registry.Get(f.Detector); ok && meta.Dimension != "" {
		return meta.Dimension
	}
	return f.Detector
}

// isIssueLenient excludes wontfix and suppressed (ignored) findings —
// the objective/lenient score only ever counts genuinely open, unignored
// issues.
func isIssueLenient(f *finding.Finding) bool {
	return f.Status == finding.StatusOpen && !f.Suppressed
}

// isIssueStrict counts wontfix and suppressed findings as issues in
// addition to plain open ones.
func isIssueStrict(f *finding.Finding) bool {
	return f.Status == finding.StatusOpen || f.Status == finding.StatusWontfix
}

// isIssueVerified additionally treats a resolved finding as still an issue
// until its resolution has survived a subsequent scan (finding.ScanVerified).
func isIssueVerified(f *finding.Finding) bool {
	if isIssueStrict(f) {
		return true
	}
	return finding.ResolvedStatuses()[f.Status] && !f.ScanVerified
}

func ratioScore(issueWeight, checkWeight float64) float64 {
	if issueWeight+checkWeight <= 0 {
		return 100
	}
	return 100 * (1 - issueWeight/(issueWeight+checkWeight))
}

// Compute derives every mechanical dimension's score and the four aggregate
// scores from the finding store's current contents.
//
// checks supplies the check_weight denominator per dimension — the number
// of checks a scan actually performed there (each detector run returns
// entries plus a scanned_count; callers accumulate scanned_count per
// dimension across the detectors that feed it). A
// dimension absent from checks is treated as having check_weight 0, which
// only matters if it also has zero issues (then it scores 100, nothing
// found because nothing was looked at, same as never having run).
func Compute(s *finding.State, registry detect.Registry, checks map[string]float64) (map[string]Dimension, Snapshot) {
	type counts struct {
		lenient, strict, verified int
		detectors                 map[string]bool
	}
	byDim := map[string]*counts{}

	for _, f := range s.Findings {
		dim := dimensionKey(registry, f)
		c, ok := byDim[dim]
		if !ok {
			c = &counts{detectors: map[string]bool{}}
			byDim[dim] = c
		}
		c.detectors[f.Detector] = true
		if isIssueLenient(f) {
			c.lenient++
		}
		if isIssueStrict(f) {
			c.strict++
		}
		if isIssueVerified(f) {
			c.verified++
		}
	}
	for dim := range checks {
		if _, ok := byDim[dim]; !ok {
			byDim[dim] = &counts{detectors: map[string]bool{}}
		}
	}

	dims := make(map[string]Dimension, len(byDim))
	var lenientSum, strictSum, verifiedSum float64
	names := make([]string, 0, len(byDim))
	for name := range byDim {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := byDim[name]
		checkWeight := checks[name]
		detectors := make([]string, 0, len(c.detectors))
		for d := range c.detectors {
			detectors = append(detectors, d)
		}
		sort.Strings(detectors)

		lenientScore := ratioScore(float64(c.lenient), checkWeight)
		strictScore := ratioScore(float64(c.strict), checkWeight)
		lenientSum += lenientScore
		strictSum += strictScore
		verifiedSum += ratioScore(float64(c.verified), checkWeight)

		dims[name] = Dimension{
			Score:     lenientScore,
			Strict:    strictScore,
			Issues:    c.lenient,
			Checks:    checkWeight,
			Detectors: detectors,
		}
	}

	mechanicalLenient, mechanicalStrict, mechanicalVerified := 100.0, 100.0, 100.0
	if n := float64(len(names)); n > 0 {
		mechanicalLenient = lenientSum / n
		mechanicalStrict = strictSum / n
		mechanicalVerified = verifiedSum / n
	}

	subjLenient, subjStrict := subjectivePools(s)

	snap := Snapshot{
		Overall:   mechanicalWeight*mechanicalLenient + (1-mechanicalWeight)*subjLenient,
		Objective: mechanicalLenient,
		Strict:    mechanicalWeight*mechanicalStrict + (1-mechanicalWeight)*subjStrict,
		// Subjective assessments have no scan-verification concept of their
		// own (an external reviewer wrote them, not a detector that can
		// re-confirm absence on a later run), so the verified aggregate
		// reuses the subjective strict pool for that half — an Open
		// Question decision recorded in DESIGN.md.
		Verified: mechanicalWeight*mechanicalVerified + (1-mechanicalWeight)*subjStrict,
	}
	return dims, snap
}

func subjectivePools(s *finding.State) (lenient, strict float64) {
	if len(s.SubjectiveAssessments) == 0 {
		return 100, 100
	}
	var lsum, ssum float64
	for _, a := range s.SubjectiveAssessments {
		lsum += a.Score
		ssum += a.Strict
	}
	n := float64(len(s.SubjectiveAssessments))
	return lsum / n, ssum / n
}
