package finding

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/persist"
)

// SubjectiveAssessment is one subjective-review dimension's latest score
// snapshot, written by the external review collaborator and read here
// only to drive synthetic work-queue items.
type SubjectiveAssessment struct {
	Score               float64 `json:"score"`
	Strict              float64 `json:"strict"`
	Issues              int     `json:"issues"`
	Placeholder         bool    `json:"placeholder"`          // never scored yet
	NeedsReviewRefresh  bool    `json:"needs_review_refresh"` // scored, but stale
}

// LangCapability records which fixers are available for a language, so the
// work queue can suggest a fixer command only when it will actually run.
type LangCapability struct {
	Fixers []string `json:"fixers"`
}

// State is the on-disk state.json document: the full finding store plus
// the subjective/scoring side-tables the work queue and synthesis engine
// read from.
type State struct {
	Version                int                              `json:"version"`
	ScanCount               int                              `json:"scan_count"`
	Findings                map[string]*Finding              `json:"findings"`
	DimensionScores         map[string]float64               `json:"dimension_scores"`
	SubjectiveAssessments   map[string]SubjectiveAssessment  `json:"subjective_assessments"`
	LangCapabilities        map[string]LangCapability        `json:"lang_capabilities"`
	AttestationLog          []AttestationEntry               `json:"attestation_log"`
	Updated                 time.Time                        `json:"updated"`
}

const StateVersion = 1

// NewState returns an empty, initialized state document.
func NewState() *State {
	return &State{
		Version:               StateVersion,
		Findings:              map[string]*Finding{},
		DimensionScores:       map[string]float64{},
		SubjectiveAssessments: map[string]SubjectiveAssessment{},
		LangCapabilities:      map[string]LangCapability{},
	}
}

// Path returns the state.json path rooted at projectDir.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".desloppify", "state.json")
}

// Save atomically writes s to state.json.
func Save(projectDir string, s *State) error {
	s.Updated = time.Now()
	return persist.WriteJSONAtomic(Path(projectDir), s)
}

// Load reads state.json, returning a fresh empty State on first run.
func Load(projectDir string) (*State, error) {
	s := NewState()
	ok, err := persist.ReadJSON(Path(projectDir), s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewState(), nil
	}
	if s.Findings == nil {
		s.Findings = map[string]*Finding{}
	}
	if s.DimensionScores == nil {
		s.DimensionScores = map[string]float64{}
	}
	if s.SubjectiveAssessments == nil {
		s.SubjectiveAssessments = map[string]SubjectiveAssessment{}
	}
	if s.LangCapabilities == nil {
		s.LangCapabilities = map[string]LangCapability{}
	}
	return s, nil
}

// MergeResult summarizes what a detector-result merge changed, for the scan
// command's summary output.
type MergeResult struct {
	New      []string
	Reopened []string
	Resolved []string // auto-resolved because the detector stopped flagging them
}

// Merge folds a detector run's findings into the store: new ids are
// inserted open, previously-resolved ids that reappear are reopened
// (incrementing reopen_count) unless they are wontfix or false_positive,
// which keep their status and are only touched, still-open ids are
// touched, and previously
// open ids from the same detector that the new run no longer reports are
// auto-resolved. Detectors are merged one at a time so a partial detector
// failure never auto-resolves findings from detectors that didn't run.
func (s *State) Merge(detector string, results []Finding, at time.Time) MergeResult {
	var res MergeResult
	seen := make(map[string]bool, len(results))

	for _, incoming := range results {
		seen[incoming.ID] = true
		existing, ok := s.Findings[incoming.ID]
		if !ok {
			f := incoming
			f.Status = StatusOpen
			f.FirstSeen = at
			f.LastSeen = at
			s.Findings[incoming.ID] = &f
			res.New = append(res.New, incoming.ID)
			continue
		}

		existing.Summary = incoming.Summary
		existing.Detail = incoming.Detail
		existing.Tier = incoming.Tier
		existing.Confidence = incoming.Confidence

		if ResolvedStatuses()[existing.Status] {
			if existing.Status == StatusFalsePositive || existing.Status == StatusWontfix {
				// Permanent dispositions are not reopened by a detector
				// seeing the same issue again; the plan's skip entry is
				// the source of truth for suppression.
				existing.Touch(at)
				continue
			}
			existing.Reopen(at)
			res.Reopened = append(res.Reopened, incoming.ID)
			continue
		}
		existing.Touch(at)
	}

	for id, f := range s.Findings {
		if f.Detector != detector {
			continue
		}
		if seen[id] {
			continue
		}
		if f.Status == StatusOpen {
			f.Resolve(StatusAutoResolved, "", "", at)
			f.ScanVerified = true
			res.Resolved = append(res.Resolved, id)
			continue
		}
		if ResolvedStatuses()[f.Status] && !f.ScanVerified {
			// Still absent from this detector's output on a later scan: the
			// resolution (however it happened) has now been confirmed.
			f.ScanVerified = true
		}
	}

	sort.Strings(res.New)
	sort.Strings(res.Reopened)
	sort.Strings(res.Resolved)
	return res
}

// ApplySuppression recomputes Suppressed for every open finding against the
// project's current ignore patterns (config.json's `ignore` list, matched
// the same way a resolve/skip pattern matches a finding). Resolved findings
// are never marked suppressed — the invariant is suppressed ⇒ status=open —
// so a pattern that only matches already-resolved ids has no effect. Call
// this after every Merge and before Save, so a changed ignore list is
// reflected immediately rather than on the next scan only.
func (s *State) ApplySuppression(patterns []string) {
	for _, f := range s.Findings {
		f.Suppressed = false
		if f.Status != StatusOpen {
			continue
		}
		for _, p := range patterns {
			if f.Matches(p) {
				f.Suppressed = true
				break
			}
		}
	}
}

// Open returns every finding currently in StatusOpen, sorted by id for
// deterministic iteration.
func (s *State) Open() []*Finding {
	out := make([]*Finding, 0, len(s.Findings))
	for _, f := range s.Findings {
		if f.Status == StatusOpen {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a finding by id.
func (s *State) Get(id string) (*Finding, bool) {
	f, ok := s.Findings[id]
	return f, ok
}
