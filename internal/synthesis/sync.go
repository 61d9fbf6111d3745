// Package synthesis implements the epic-synthesis stage-gate workflow
// (observe -> reflect -> organize -> complete, with a confirm-existing
// fast track) and the queue-sync passes that keep synthetic subjective and
// synthesis::pending entries in the plan's queue_order up to date with the
// finding store.
package synthesis

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
	"github.com/theRebelliousNerd/desloppify/internal/queue"
)

// ReviewFindingSnapshotHash hashes the sorted set of open review/concerns
// finding ids, used to detect whether the plan's synthesis is stale
// relative to the finding store. Empty when there are no open review
// findings.
func ReviewFindingSnapshotHash(s *finding.State) string {
	var ids []string
	for id, f := range s.Findings {
		if f.Status == finding.StatusOpen && isReviewDetector(f.Detector) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

func isReviewDetector(d string) bool { return d == "review" || d == "concerns" }

// currentUnscoredIDs and currentStaleIDs read staleness directly off
// finding.SubjectiveAssessment rather than routing through a scorecard
// projection/alias table (see the equivalent simplification documented in
// internal/queue/subjective.go): dimension keys here are already canonical.
func currentUnscoredIDs(s *finding.State) map[string]bool {
	out := map[string]bool{}
	for dim, a := range s.SubjectiveAssessments {
		if dim == "" || !a.Placeholder {
			continue
		}
		out[plan.SubjectivePrefix+queue.Slugify(dim)] = true
	}
	return out
}

func currentStaleIDs(s *finding.State) map[string]bool {
	out := map[string]bool{}
	for dim, a := range s.SubjectiveAssessments {
		if dim == "" || !a.NeedsReviewRefresh {
			continue
		}
		out[plan.SubjectivePrefix+queue.Slugify(dim)] = true
	}
	return out
}

// DimensionSyncResult reports what a sync pass changed in queue_order.
type DimensionSyncResult struct {
	Injected []string
	Pruned   []string
}

func (r DimensionSyncResult) Changes() int { return len(r.Injected) + len(r.Pruned) }

func removeFromOrder(order []string, id string) []string {
	out := order[:0]
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SyncUnscoredDimensions prepends never-scored ("placeholder") subjective
// dimensions to the front of queue_order unconditionally, and prunes
// subjective:: entries that are neither unscored nor stale (stale entries
// are SyncStaleDimensions's responsibility).
func SyncUnscoredDimensions(p *plan.Plan, s *finding.State) DimensionSyncResult {
	var result DimensionSyncResult
	unscored := currentUnscoredIDs(s)
	stale := currentStaleIDs(s)

	order := p.QueueOrder
	for _, id := range order {
		if strings.HasPrefix(id, plan.SubjectivePrefix) && !unscored[id] && !stale[id] {
			result.Pruned = append(result.Pruned, id)
		}
	}
	for _, id := range result.Pruned {
		order = removeFromOrder(order, id)
	}

	existing := map[string]bool{}
	for _, id := range order {
		existing[id] = true
	}
	keys := make([]string, 0, len(unscored))
	for id := range unscored {
		keys = append(keys, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	for _, id := range keys {
		if !existing[id] {
			order = append([]string{id}, order...)
			result.Injected = append(result.Injected, id)
		}
	}

	p.QueueOrder = order
	return result
}

// SyncStaleDimensions appends currently-stale subjective dimensions to the
// back of queue_order, but only when no real (non-subjective) work items
// remain — it never competes with actual objective work for attention.
func SyncStaleDimensions(p *plan.Plan, s *finding.State) DimensionSyncResult {
	var result DimensionSyncResult
	stale := currentStaleIDs(s)
	unscored := currentUnscoredIDs(s)

	order := p.QueueOrder
	for _, id := range order {
		if strings.HasPrefix(id, plan.SubjectivePrefix) && !stale[id] && !unscored[id] {
			result.Pruned = append(result.Pruned, id)
		}
	}
	for _, id := range result.Pruned {
		order = removeFromOrder(order, id)
	}

	hasRealItems := false
	for _, id := range order {
		if !strings.HasPrefix(id, plan.SubjectivePrefix) {
			hasRealItems = true
			break
		}
	}
	if !hasRealItems && len(stale) > 0 {
		existing := map[string]bool{}
		for _, id := range order {
			existing[id] = true
		}
		keys := make([]string, 0, len(stale))
		for id := range stale {
			keys = append(keys, id)
		}
		sort.Strings(keys)
		for _, id := range keys {
			if !existing[id] {
				order = append(order, id)
				result.Injected = append(result.Injected, id)
			}
		}
	}

	p.QueueOrder = order
	return result
}

// SynthesisSyncResult reports whether synthesis::pending was injected.
type SynthesisSyncResult struct {
	Injected bool
}

func (r SynthesisSyncResult) Changes() int {
	if r.Injected {
		return 1
	}
	return 0
}

// SyncSynthesisNeeded injects synthesis::pending at the front of
// queue_order whenever the open review/concerns snapshot hash has changed
// since the last completed (or confirmed) synthesis. It never auto-prunes
// — only an explicit Complete or ConfirmExisting call removes the entry.
func SyncSynthesisNeeded(p *plan.Plan, s *finding.State) SynthesisSyncResult {
	var result SynthesisSyncResult
	alreadyPresent := inQueue(p, plan.SynthesisPendingID)

	currentHash := ReviewFindingSnapshotHash(s)
	lastHash, _ := p.EpicSynthesisMeta["finding_snapshot_hash"].(string)

	if currentHash != "" && currentHash != lastHash && !alreadyPresent {
		p.QueueOrder = append([]string{plan.SynthesisPendingID}, p.QueueOrder...)
		result.Injected = true
	}
	return result
}

func inQueue(p *plan.Plan, id string) bool {
	for _, v := range p.QueueOrder {
		if v == id {
			return true
		}
	}
	return false
}
