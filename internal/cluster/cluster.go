// Package cluster regenerates the plan's auto-generated clusters from the
// current set of open findings, grouping related work under one queue
// entry the way a human triaging the backlog would.
package cluster

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
)

const (
	autoPrefix            = "auto/"
	minClusterSizeDefault = 2
	staleKey              = "subjective::stale"
	staleName             = "auto/stale-review"
	unscoredKey           = "subjective::unscored"
	unscoredName          = "auto/initial-review"
	minUnscoredSize       = 1
	subjectivePrefix      = "subjective::"
)

// groupingKey computes the deterministic key a finding is auto-clustered
// under. Every finding gets a key; "detector::<name>" is the fallback.
func groupingKey(f *finding.Finding, meta detect.Meta, known bool) string {
	if !known {
		return "detector::" + f.Detector
	}

	if f.Detector == "review" || f.Detector == "subjective_review" {
		if dim, _ := f.Detail["dimension"].(string); dim != "" {
			return "review::" + dim
		}
		return "detector::" + f.Detector
	}

	if meta.NeedsJudgment && (f.Detector == "structural" || f.Detector == "responsibility_cohesion") {
		if f.File != "" {
			return "file::" + f.Detector + "::" + filepath.Base(f.File)
		}
	}

	if meta.NeedsJudgment {
		if subtype := extractSubtype(f); subtype != "" {
			return "typed::" + f.Detector + "::" + subtype
		}
	}

	if meta.ActionType == detect.ActionAutoFix && !meta.NeedsJudgment {
		return "auto::" + f.Detector
	}

	return "detector::" + f.Detector
}

// extractSubtype mirrors _extract_subtype: detail.kind first, else the
// trailing "::"-segment of the id when it isn't a path or filename.
func extractSubtype(f *finding.Finding) string {
	if kind, _ := f.Detail["kind"].(string); kind != "" {
		return kind
	}
	parts := strings.Split(f.ID, "::")
	if len(parts) >= 3 {
		candidate := parts[len(parts)-1]
		if !strings.Contains(candidate, "/") && !strings.Contains(candidate, ".") {
			return candidate
		}
	}
	return ""
}

// clusterNameFromKey converts a grouping key into its "auto/"-prefixed
// cluster name.
func clusterNameFromKey(key string) string {
	parts := strings.Split(key, "::")
	switch len(parts) {
	case 2:
		if parts[0] == "review" {
			return autoPrefix + "review-" + parts[1]
		}
		return autoPrefix + parts[1]
	case 3:
		return autoPrefix + parts[1] + "-" + parts[2]
	default:
		return autoPrefix + strings.ReplaceAll(key, "::", "-")
	}
}

var actionTypeTemplates = map[detect.ActionType]string{
	detect.ActionReorganize: "reorganize with desloppify move",
	detect.ActionRefactor:   "review and refactor each finding",
	detect.ActionManualFix:  "review and fix each finding",
}

func generateDescription(members []*finding.Finding, meta detect.Meta, known bool, subtype string) string {
	count := len(members)
	detector := ""
	if len(members) > 0 {
		detector = members[0].Detector
	}

	if detector == "review" || detector == "subjective_review" {
		dim := detector
		if len(members) > 0 {
			if d, _ := members[0].Detail["dimension"].(string); d != "" {
				dim = d
			}
		}
		return fmt.Sprintf("Address %d %s review findings", count, dim)
	}

	if detector == "structural" {
		files := map[string]bool{}
		for _, m := range members {
			files[filepath.Base(m.File)] = true
		}
		if len(files) == 1 {
			for f := range files {
				return "Decompose " + f
			}
		}
		return fmt.Sprintf("Decompose %d large files", count)
	}

	display := detector
	if known {
		display = meta.Display
	}
	if subtype != "" {
		label := strings.ReplaceAll(subtype, "_", " ")
		return fmt.Sprintf("Fix %d %s issues", count, label)
	}
	if known && meta.ActionType == detect.ActionAutoFix && !meta.NeedsJudgment {
		return fmt.Sprintf("Remove %d %s findings", count, display)
	}
	return fmt.Sprintf("Fix %d %s issues", count, display)
}

func subtypeHasFixer(meta detect.Meta, subtype string) string {
	if len(meta.Fixers) == 0 || subtype == "" {
		return ""
	}
	fixerName := strings.ReplaceAll(subtype, "_", "-")
	for _, f := range meta.Fixers {
		if f == fixerName {
			return f
		}
	}
	for _, f := range meta.Fixers {
		if strings.Contains(f, subtype) {
			return f
		}
	}
	return ""
}

func stripGuidanceExamples(guidance string) string {
	if idx := strings.Index(guidance, " — "); idx != -1 {
		return strings.TrimSpace(guidance[:idx])
	}
	return guidance
}

func generateAction(meta detect.Meta, known bool, subtype string) string {
	if !known {
		return "review and fix each finding"
	}

	if subtype != "" && len(meta.Fixers) > 0 {
		if matched := subtypeHasFixer(meta, subtype); matched != "" {
			return "desloppify fix " + matched + " --dry-run"
		}
	} else if meta.ActionType == detect.ActionAutoFix && len(meta.Fixers) > 0 && !meta.NeedsJudgment {
		return "desloppify fix " + meta.Fixers[0] + " --dry-run"
	}

	if meta.Tool == "move" {
		return "desloppify move"
	}

	if meta.Guidance != "" {
		if subtype != "" {
			return stripGuidanceExamples(meta.Guidance)
		}
		return meta.Guidance
	}

	if tmpl, ok := actionTypeTemplates[meta.ActionType]; ok {
		return tmpl
	}
	return "review and fix each finding"
}

// SubjectiveClassifier lets the caller (the scan command) tell the cluster
// engine which queued subjective::* ids are unscored vs previously-scored,
// mirroring stale_dimensions._current_unscored_ids without this package
// importing the synthesis package.
type SubjectiveClassifier func(id string) (unscored bool)

// Regenerate rebuilds every auto-generated cluster from the currently open,
// non-manually-claimed findings. It returns the number of clusters
// created, updated, or deleted.
func Regenerate(p *plan.Plan, s *finding.State, registry detect.Registry, minSize int, classify SubjectiveClassifier) int {
	plan.EnsureDefaults(p)
	if minSize <= 0 {
		minSize = minClusterSizeDefault
	}
	changes := 0
	now := time.Now().UTC()

	manualMembers := map[string]bool{}
	for _, c := range p.Clusters {
		if c.Auto {
			continue
		}
		for _, id := range c.FindingIDs {
			manualMembers[id] = true
		}
	}

	groups := map[string][]string{}
	data := map[string]*finding.Finding{}
	var openIDs []string
	for id, f := range s.Findings {
		if f.Status != finding.StatusOpen || manualMembers[id] {
			continue
		}
		openIDs = append(openIDs, id)
	}
	sort.Strings(openIDs)

	for _, id := range openIDs {
		f := s.Findings[id]
		meta, known := registry.Get(f.Detector)
		key := groupingKey(f, meta, known)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], id)
		data[id] = f
	}
	for k, ids := range groups {
		if len(ids) < minSize {
			delete(groups, k)
		}
	}

	existingByKey := map[string]string{}
	for name, c := range p.Clusters {
		if c.Auto && c.ClusterKey != "" {
			existingByKey[c.ClusterKey] = name
		}
	}

	activeKeys := map[string]bool{}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		memberIDs := append([]string(nil), groups[key]...)
		sort.Strings(memberIDs)
		activeKeys[key] = true

		clusterName := clusterNameFromKey(key)
		detector := ""
		if f, ok := data[memberIDs[0]]; ok {
			detector = f.Detector
		}
		meta, known := registry.Get(detector)

		members := make([]*finding.Finding, 0, len(memberIDs))
		for _, id := range memberIDs {
			if f, ok := data[id]; ok {
				members = append(members, f)
			}
		}

		keyParts := strings.Split(key, "::")
		subtype := ""
		if len(keyParts) >= 3 {
			subtype = keyParts[2]
		}

		description := generateDescription(members, meta, known, subtype)
		action := generateAction(meta, known, subtype)

		currentName := clusterName
		if existingName, ok := existingByKey[key]; ok {
			if c, ok := p.Clusters[existingName]; ok {
				currentName = existingName
				if c.UserModified {
					existingIDs := map[string]bool{}
					for _, id := range c.FindingIDs {
						existingIDs[id] = true
					}
					var newIDs []string
					for _, id := range memberIDs {
						if !existingIDs[id] {
							newIDs = append(newIDs, id)
						}
					}
					if len(newIDs) > 0 {
						c.FindingIDs = append(c.FindingIDs, newIDs...)
						c.UpdatedAt = now
						p.Clusters[existingName] = c
						changes++
					}
				} else {
					oldSet := map[string]bool{}
					for _, id := range c.FindingIDs {
						oldSet[id] = true
					}
					newSet := map[string]bool{}
					for _, id := range memberIDs {
						newSet[id] = true
					}
					if !stringSetsEqual(oldSet, newSet) || c.Description != description || c.Action != action {
						c.FindingIDs = memberIDs
						c.Description = description
						c.Action = action
						c.UpdatedAt = now
						p.Clusters[existingName] = c
						changes++
					}
				}
			}
		} else {
			if existing, ok := p.Clusters[clusterName]; ok && existing.ClusterKey != key {
				clusterName = fmt.Sprintf("%s-%d", clusterName, len(memberIDs))
			}
			p.Clusters[clusterName] = plan.Cluster{
				Name: clusterName, Description: description, FindingIDs: memberIDs,
				CreatedAt: now, UpdatedAt: now, Auto: true, ClusterKey: key, Action: action,
			}
			existingByKey[key] = clusterName
			currentName = clusterName
			changes++
		}

		for _, id := range memberIDs {
			ov, ok := p.Overrides[id]
			if !ok {
				ov = plan.ItemOverride{FindingID: id, CreatedAt: now}
			}
			ov.Cluster = currentName
			ov.UpdatedAt = now
			p.Overrides[id] = ov
		}
	}

	changes += regenerateSubjectiveClusters(p, registry, classify, existingByKey, activeKeys, now)
	changes += pruneStaleAutoClusters(p, s, activeKeys, now)

	p.Updated = now
	return changes
}

func stringSetsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func regenerateSubjectiveClusters(p *plan.Plan, _ detect.Registry, classify SubjectiveClassifier, existingByKey map[string]string, activeKeys map[string]bool, now time.Time) int {
	changes := 0
	var allSubjective []string
	for _, id := range p.QueueOrder {
		if strings.HasPrefix(id, subjectivePrefix) {
			allSubjective = append(allSubjective, id)
		}
	}
	sort.Strings(allSubjective)

	var unscored, stale []string
	for _, id := range allSubjective {
		if classify != nil && classify(id) {
			unscored = append(unscored, id)
		} else {
			stale = append(stale, id)
		}
	}

	if len(unscored) >= minUnscoredSize {
		activeKeys[unscoredKey] = true
		cliKeys := make([]string, len(unscored))
		for i, id := range unscored {
			cliKeys[i] = strings.TrimPrefix(id, subjectivePrefix)
		}
		description := fmt.Sprintf("Initial review of %d unscored subjective dimensions", len(unscored))
		action := "desloppify review --prepare --dimensions " + strings.Join(cliKeys, ",")
		name, created := upsertSyntheticCluster(p, existingByKey, unscoredKey, unscoredName, unscored, description, action, now)
		if created {
			changes++
		}
		touchOverrides(p, unscored, name, now)
	}

	if len(stale) >= minClusterSizeDefault {
		activeKeys[staleKey] = true
		cliKeys := make([]string, len(stale))
		for i, id := range stale {
			cliKeys[i] = strings.TrimPrefix(id, subjectivePrefix)
		}
		description := fmt.Sprintf("Re-review %d stale subjective dimensions", len(stale))
		action := "desloppify review --prepare --dimensions " + strings.Join(cliKeys, ",") + " --force-review-rerun"
		name, created := upsertSyntheticCluster(p, existingByKey, staleKey, staleName, stale, description, action, now)
		if created {
			changes++
		}
		touchOverrides(p, stale, name, now)
	}

	return changes
}

func upsertSyntheticCluster(p *plan.Plan, existingByKey map[string]string, key, defaultName string, ids []string, description, action string, now time.Time) (string, bool) {
	if existingName, ok := existingByKey[key]; ok {
		if c, ok := p.Clusters[existingName]; ok {
			oldSet := map[string]bool{}
			for _, id := range c.FindingIDs {
				oldSet[id] = true
			}
			newSet := map[string]bool{}
			for _, id := range ids {
				newSet[id] = true
			}
			if !stringSetsEqual(oldSet, newSet) || c.Description != description || c.Action != action {
				c.FindingIDs = ids
				c.Description = description
				c.Action = action
				c.UpdatedAt = now
				p.Clusters[existingName] = c
				return existingName, true
			}
			return existingName, false
		}
	}
	p.Clusters[defaultName] = plan.Cluster{
		Name: defaultName, Description: description, FindingIDs: ids,
		CreatedAt: now, UpdatedAt: now, Auto: true, ClusterKey: key, Action: action,
	}
	existingByKey[key] = defaultName
	return defaultName, true
}

func touchOverrides(p *plan.Plan, ids []string, clusterName string, now time.Time) {
	for _, id := range ids {
		ov, ok := p.Overrides[id]
		if !ok {
			ov = plan.ItemOverride{FindingID: id, CreatedAt: now}
		}
		ov.Cluster = clusterName
		ov.UpdatedAt = now
		p.Overrides[id] = ov
	}
}

func pruneStaleAutoClusters(p *plan.Plan, s *finding.State, activeKeys map[string]bool, now time.Time) int {
	changes := 0
	names := make([]string, 0, len(p.Clusters))
	for name := range p.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := p.Clusters[name]
		if !c.Auto {
			continue
		}
		if activeKeys[c.ClusterKey] {
			continue
		}
		if c.UserModified {
			var alive []string
			for _, id := range c.FindingIDs {
				if f, ok := s.Findings[id]; ok && f.Status == finding.StatusOpen {
					alive = append(alive, id)
				}
			}
			if len(alive) > 0 {
				if len(alive) != len(c.FindingIDs) {
					c.FindingIDs = alive
					c.UpdatedAt = now
					p.Clusters[name] = c
					changes++
				}
				continue
			}
		}
		delete(p.Clusters, name)
		for _, id := range c.FindingIDs {
			if ov, ok := p.Overrides[id]; ok && ov.Cluster == name {
				ov.Cluster = ""
				ov.UpdatedAt = now
				p.Overrides[id] = ov
			}
		}
		if p.ActiveCluster == name {
			p.ActiveCluster = ""
		}
		changes++
	}
	return changes
}
