// Package queue implements the unified work-queue selector: the single
// ranking and filtering pass behind `desloppify next`, `plan show`, and the
// plan views, merging mechanical findings with synthetic subjective/
// synthesis items.
package queue

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

// AttestExample is shown to users as a template for the --attest flag.
const AttestExample = "I have actually [DESCRIBE THE CONCRETE CHANGE YOU MADE] " +
	"and I am not gaming the score by resolving without fixing."

// ConfidenceOrder ranks confidence for sorting: lower sorts first (more
// confident findings are addressed before less-confident ones at equal
// tier).
var ConfidenceOrder = map[finding.Confidence]int{
	finding.ConfidenceHigh:   0,
	finding.ConfidenceMedium: 1,
	finding.ConfidenceLow:    2,
}

func confidenceRank(c finding.Confidence) int {
	if r, ok := ConfidenceOrder[c]; ok {
		return r
	}
	return 9
}

func isReviewFinding(detector string) bool { return detector == "review" }

func isSubjectiveFinding(detector string) bool {
	return detector == "subjective_assessment" || detector == "holistic_review"
}

func reviewFindingWeight(confidence finding.Confidence, detail map[string]any) float64 {
	weight := map[finding.Confidence]float64{
		finding.ConfidenceHigh:   1.0,
		finding.ConfidenceMedium: 0.7,
		finding.ConfidenceLow:    0.3,
	}[confidence]
	if weight == 0 {
		weight = 0.3
	}
	if holistic, _ := detail["holistic"].(bool); holistic {
		weight *= 10.0
	}
	return weight
}

var hashSuffixRe = regexp.MustCompile(`^[0-9a-f]+$`)

// ScopeMatches applies `show`-style pattern matching against a queue item.
func ScopeMatches(item *Item, scope string) bool {
	if scope == "" {
		return true
	}

	dimension, _ := item.Detail["dimension_name"].(string)

	if strings.Contains(scope, "*") {
		for _, candidate := range []string{item.ID, item.File, item.Detector, dimension, item.Summary} {
			if ok, _ := path.Match(scope, candidate); ok {
				return true
			}
		}
		return false
	}

	if strings.Contains(scope, "::") {
		return strings.HasPrefix(item.ID, scope)
	}

	lowered := strings.ToLower(scope)
	if item.Kind == "subjective_dimension" {
		return strings.Contains(strings.ToLower(item.ID), lowered) ||
			strings.Contains(strings.ToLower(dimension), lowered) ||
			strings.Contains(strings.ToLower(item.Summary), lowered)
	}

	if len(lowered) >= 8 && hashSuffixRe.MatchString(lowered) {
		return strings.HasSuffix(strings.ToLower(item.ID), "::"+lowered)
	}

	return item.Detector == scope || item.File == scope ||
		strings.HasPrefix(item.File, strings.TrimRight(scope, "/")+"/")
}

// Slugify lowercases and collapses non [a-z0-9_] runs into underscores.
func Slugify(text string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func supportedFixers(lang string, caps map[string]finding.LangCapability) (map[string]bool, bool) {
	if lang == "" {
		return nil, false
	}
	c, ok := caps[lang]
	if !ok {
		return nil, false
	}
	out := make(map[string]bool, len(c.Fixers))
	for _, f := range c.Fixers {
		out[f] = true
	}
	return out, true
}

// PrimaryCommandForFinding returns the suggested next command for a finding
// item, given its detector metadata and the project's fixer support table.
func PrimaryCommandForFinding(item *Item, registry detect.Registry, supported map[string]bool, supportedKnown bool) string {
	if meta, ok := registry.Get(item.Detector); ok && meta.ActionType == detect.ActionAutoFix && len(meta.Fixers) > 0 {
		var available []string
		for _, f := range meta.Fixers {
			if !supportedKnown || supported[f] {
				available = append(available, f)
			}
		}
		if len(available) > 0 {
			return fmt.Sprintf("desloppify fix %s --dry-run", available[0])
		}
	}
	if item.Detector == "subjective_review" {
		if holistic, _ := item.Detail["holistic"].(bool); holistic {
			return "desloppify review --prepare"
		}
		return "desloppify show subjective"
	}
	return fmt.Sprintf(`desloppify resolve %q --status fixed --note "<what you did>" --attest %q`, item.ID, AttestExample)
}
