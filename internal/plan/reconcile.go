package plan

import (
	"sort"
	"strings"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

// SubjectivePrefix marks synthetic dimension work-items owned by the
// subjective-queue sync rather than the reconciler.
const SubjectivePrefix = "subjective::"

// SynthesisPendingID is the synthetic synthesis-queue entry; like
// subjective items it is excluded from reconciliation (owned by the
// synthesis sync), since neither synthetic id shape is ever a real
// finding id.
const SynthesisPendingID = "synthesis::pending"

// DefaultSupersededTTLDays is how long a superseded entry survives before
// being pruned, absent a config override.
const DefaultSupersededTTLDays = 90

// ReconcileResult summarizes what reconciliation changed.
type ReconcileResult struct {
	Superseded []string
	Pruned     []string
	Resurfaced []string
	Changes    int
}

func findCandidates(s *finding.State, detector, file string) []string {
	var out []string
	for id, f := range s.Findings {
		if f.Status != finding.StatusOpen {
			continue
		}
		if f.Detector == detector && f.File == file {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func isFindingAlive(s *finding.State, id string) bool {
	f, ok := s.Get(id)
	if !ok {
		return false
	}
	return f.Status == finding.StatusOpen
}

func supersedeID(p *Plan, s *finding.State, id string, now time.Time) {
	var detector, file, summary string
	if f, ok := s.Get(id); ok {
		detector, file, summary = f.Detector, f.File, f.Summary
	}

	var candidates []string
	if detector != "" {
		for _, c := range findCandidates(s, detector, file) {
			if c != id {
				candidates = append(candidates, c)
			}
		}
	}
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}

	entry := SupersededEntry{
		OriginalID:       id,
		OriginalDetector: detector,
		OriginalFile:     file,
		OriginalSummary:  summary,
		Status:           "superseded",
		SupersededAt:     now,
		Candidates:       candidates,
	}
	if ov, ok := p.Overrides[id]; ok && ov.Note != "" {
		entry.Note = ov.Note
	}
	p.Superseded[id] = entry

	removeIDFromLists(p, id)
	for name, c := range p.Clusters {
		if contains(c.FindingIDs, id) {
			c.FindingIDs = removeString(c.FindingIDs, id)
			p.Clusters[name] = c
		}
	}
}

func pruneOldSuperseded(p *Plan, now time.Time, ttlDays int) []string {
	cutoff := now.AddDate(0, 0, -ttlDays)
	var toPrune []string
	for id, entry := range p.Superseded {
		if entry.SupersededAt.IsZero() || entry.SupersededAt.Before(cutoff) {
			toPrune = append(toPrune, id)
		}
	}
	sort.Strings(toPrune)
	for _, id := range toPrune {
		delete(p.Superseded, id)
		delete(p.Overrides, id)
	}
	return toPrune
}

// ReconcileAfterScan folds finding-store churn into the plan: referenced
// ids that no longer exist (or are no longer open) move to Superseded,
// stale temporary skips resurface, and superseded/override entries past
// the TTL are pruned.
func ReconcileAfterScan(p *Plan, s *finding.State, scanCount, ttlDays int) ReconcileResult {
	EnsureDefaults(p)
	var result ReconcileResult
	now := time.Now().UTC()

	referenced := map[string]bool{}
	for _, id := range p.QueueOrder {
		referenced[id] = true
	}
	for id := range p.Skipped {
		referenced[id] = true
	}
	for id := range p.Overrides {
		referenced[id] = true
	}
	for _, c := range p.Clusters {
		for _, id := range c.FindingIDs {
			referenced[id] = true
		}
	}
	for id := range p.Superseded {
		delete(referenced, id)
	}
	for id := range referenced {
		if strings.HasPrefix(id, SubjectivePrefix) || id == SynthesisPendingID {
			delete(referenced, id)
		}
	}

	ids := make([]string, 0, len(referenced))
	for id := range referenced {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !isFindingAlive(s, id) {
			supersedeID(p, s, id, now)
			result.Superseded = append(result.Superseded, id)
			result.Changes++
		}
	}

	resurfaced := ResurfaceStaleSkips(p, scanCount)
	if len(resurfaced) > 0 {
		sort.Strings(resurfaced)
		result.Resurfaced = resurfaced
		result.Changes += len(resurfaced)
	}

	if ttlDays <= 0 {
		ttlDays = DefaultSupersededTTLDays
	}
	pruned := pruneOldSuperseded(p, now, ttlDays)
	result.Pruned = pruned
	result.Changes += len(pruned)

	return result
}
