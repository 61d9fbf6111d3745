package finding

import (
	"path"
	"regexp"
	"strings"
	"time"
)

// AttestationEntry records one attested command invocation, appended to the
// attestation log whenever a resolution requires one — an append-only audit
// trail a later review can hold the user to. One entry covers the whole
// invocation, however many findings it touched.
type AttestationEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Command     string    `json:"command"`
	Pattern     string    `json:"pattern"`
	Attestation string    `json:"attestation"`
	Affected    []string  `json:"affected"`
}

var hashSuffixRe = regexp.MustCompile(`^[0-9a-f]{8,}$`)

// Matches reports whether a finding id/detector/path satisfies pattern:
// a glob (path.Match semantics, when pattern contains a wildcard), an
// exact id, an id-hash-suffix (>=8 trailing hex chars), or a detector/file
// prefix match.
func (f *Finding) Matches(pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.ContainsAny(pattern, "*?[") {
		for _, candidate := range []string{f.ID, f.File, f.Detector} {
			if ok, _ := path.Match(pattern, candidate); ok {
				return true
			}
		}
		return false
	}
	if f.ID == pattern {
		return true
	}
	lowered := strings.ToLower(pattern)
	if hashSuffixRe.MatchString(lowered) {
		return strings.HasSuffix(strings.ToLower(f.ID), "::"+lowered) || strings.HasSuffix(strings.ToLower(f.ID), lowered)
	}
	return f.Detector == pattern || f.File == pattern ||
		strings.HasPrefix(f.File, strings.TrimRight(pattern, "/")+"/")
}

// MatchFindings returns every finding id matching pattern, optionally
// restricted to one status ("" means any status).
func (s *State) MatchFindings(pattern string, statusFilter Status) []string {
	var out []string
	for id, f := range s.Findings {
		if statusFilter != "" && f.Status != statusFilter {
			continue
		}
		if f.Matches(pattern) {
			out = append(out, id)
		}
	}
	return out
}

// PathScopedFindings restricts findings to the given subtree (scanPath a
// prefix of Finding.File), or returns findings unchanged when scanPath is
// empty.
func PathScopedFindings(findings map[string]*Finding, scanPath string) map[string]*Finding {
	if scanPath == "" {
		return findings
	}
	prefix := strings.TrimRight(scanPath, "/") + "/"
	out := make(map[string]*Finding, len(findings))
	for id, f := range findings {
		if f.File == scanPath || strings.HasPrefix(f.File, prefix) {
			out[id] = f
		}
	}
	return out
}

// ResolveResult is what ResolveFindings changed.
type ResolveResult struct {
	Affected []string
}

// ResolveFindings transitions every open finding matching pattern to
// targetStatus, recording note/attestation on each. When attestation is
// non-empty it appends a single AttestationLog entry for the whole
// invocation, listing every affected id, rather than one entry per finding.
func (s *State) ResolveFindings(pattern string, targetStatus Status, note, attestation string, at time.Time) ResolveResult {
	var res ResolveResult
	for _, id := range s.MatchFindings(pattern, StatusOpen) {
		f := s.Findings[id]
		f.Resolve(targetStatus, note, attestation, at)
		res.Affected = append(res.Affected, id)
	}
	if attestation != "" && len(res.Affected) > 0 {
		s.AttestationLog = append(s.AttestationLog, AttestationEntry{
			Timestamp: at, Command: "resolve --status " + string(targetStatus),
			Pattern: pattern, Attestation: attestation, Affected: res.Affected,
		})
	}
	return res
}

// ApplyFindingNoiseBudget caps the number of displayed matches per detector
// (perDetector <= 0 means unlimited) and then globally (global <= 0 means
// unlimited), returning the surfaced subset and a per-detector hidden count.
func ApplyFindingNoiseBudget(matches []*Finding, perDetector, global int) (surfaced []*Finding, hiddenByDetector map[string]int) {
	hiddenByDetector = map[string]int{}
	perDetectorCount := map[string]int{}

	for _, f := range matches {
		if perDetector > 0 && perDetectorCount[f.Detector] >= perDetector {
			hiddenByDetector[f.Detector]++
			continue
		}
		perDetectorCount[f.Detector]++
		surfaced = append(surfaced, f)
	}

	if global > 0 && len(surfaced) > global {
		for _, f := range surfaced[global:] {
			hiddenByDetector[f.Detector]++
		}
		surfaced = surfaced[:global]
	}
	return surfaced, hiddenByDetector
}
