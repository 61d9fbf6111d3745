package queue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

const subjectivePrefix = "subjective::"

// buildSubjectiveItems synthesizes one tier-4 work item per subjective
// dimension whose strict score is still below threshold. Dimension names
// here are already the canonical, slugified keys written by the review
// collaborator, so no further alias resolution is needed — each dimension
// key is used directly.
func buildSubjectiveItems(s *finding.State, threshold float64) []Item {
	if len(s.SubjectiveAssessments) == 0 {
		return nil
	}
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 100 {
		threshold = 100
	}

	reviewOpenByDim := map[string]int{}
	for _, f := range s.Findings {
		if f.Status != finding.StatusOpen || f.Detector != "review" {
			continue
		}
		dim, _ := f.Detail["dimension"].(string)
		dim = strings.ToLower(strings.TrimSpace(dim))
		if dim == "" {
			continue
		}
		reviewOpenByDim[dim]++
	}

	keys := make([]string, 0, len(s.SubjectiveAssessments))
	for k := range s.SubjectiveAssessments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items []Item
	for _, dimKey := range keys {
		entry := s.SubjectiveAssessments[dimKey]
		strict := entry.Strict
		if strict == 0 && entry.Score != 0 {
			strict = entry.Score
		}
		if strict >= threshold {
			continue
		}

		openReview := reviewOpenByDim[strings.ToLower(dimKey)]
		isUnassessed := entry.Placeholder || (strict <= 0 && entry.Issues == 0)
		isStale := entry.NeedsReviewRefresh

		var primaryCommand string
		switch {
		case isUnassessed:
			primaryCommand = "desloppify review --prepare"
		case isStale:
			primaryCommand = "desloppify review --prepare --dimensions " + dimKey
		case openReview > 0:
			primaryCommand = "desloppify show review --status open"
		default:
			primaryCommand = "desloppify review --prepare --dimensions " + dimKey
		}

		staleTag := ""
		if isStale {
			staleTag = " [stale - re-review]"
		}
		summary := fmt.Sprintf("Subjective dimension below target: %s (%.1f%%)%s", dimKey, strict, staleTag)

		items = append(items, Item{
			ID:              subjectivePrefix + Slugify(dimKey),
			Kind:            "subjective_dimension",
			Detector:        "subjective_assessment",
			File:            ".",
			Tier:            4,
			EffectiveTier:   4,
			Confidence:      finding.ConfidenceMedium,
			Summary:         summary,
			Detail: map[string]any{
				"dimension_name": dimKey,
				"dimension":      dimKey,
				"issues":         entry.Issues,
				"strict_score":   strict,
				"open_review_findings": openReview,
			},
			Status:          "open",
			SubjectiveScore: strict,
			IsSubjective:    true,
			PrimaryCommand:  primaryCommand,
		})
	}
	return items
}

// subjectiveStrictScores returns, for every assessed dimension, its strict
// score keyed by dimension key (lowercased) — used by buildFindingItems
// to annotate subjective findings with the dimension's current strict score.
func subjectiveStrictScores(s *finding.State) map[string]float64 {
	out := map[string]float64{}
	for k, v := range s.SubjectiveAssessments {
		strict := v.Strict
		if strict == 0 && v.Score != 0 {
			strict = v.Score
		}
		out[strings.ToLower(k)] = strict
	}
	return out
}
