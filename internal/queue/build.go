package queue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/theRebelliousNerd/desloppify/internal/detect"
	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
)

// BuildOptions configures queue construction.
type BuildOptions struct {
	Tier                *int
	Count               int // 0 means "no limit"
	ScanPath            string
	Scope               string
	Status              string // defaults to "open"
	IncludeSubjective   bool
	SubjectiveThreshold float64 // defaults to config.TargetStrictScore (95)
	Chronic             bool
	NoTierFallback      bool
	Explain             bool

	// Plan drives skip filtering and cluster collapsing/focus. A nil Plan
	// disables both: every item is shown expanded and IncludeSkipped is
	// moot.
	Plan             *plan.Plan
	IncludeSkipped   bool
	CollapseClusters bool
	Cluster          string // focused auto-cluster name; expands instead of collapsing
}

// Result is the unified queue build output.
type Result struct {
	Items           []Item
	Total           int
	TierCounts      map[int]int
	RequestedTier   *int
	SelectedTier    *int
	FallbackReason  string
	AvailableTiers  []int
	Grouped         map[string][]Item
}

func allStatuses() map[string]bool {
	out := map[string]bool{"all": true}
	for _, s := range finding.AllStatuses() {
		out[string(s)] = true
	}
	return out
}

func statusMatches(itemStatus, filter string) bool {
	return filter == "all" || itemStatus == filter
}

func pathScoped(findings map[string]*finding.Finding, scanPath string) map[string]*finding.Finding {
	if scanPath == "" {
		return findings
	}
	prefix := strings.TrimRight(scanPath, "/") + "/"
	out := map[string]*finding.Finding{}
	for id, f := range findings {
		if f.File == scanPath || strings.HasPrefix(f.File, prefix) {
			out[id] = f
		}
	}
	return out
}

func buildFindingItems(s *finding.State, registry detect.Registry, opts BuildOptions) []Item {
	scoped := pathScoped(s.Findings, opts.ScanPath)
	subjScores := subjectiveStrictScores(s)

	ids := make([]string, 0, len(scoped))
	for id := range scoped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Item
	for _, id := range ids {
		f := scoped[id]
		if !statusMatches(string(f.Status), opts.Status) {
			continue
		}
		if opts.Chronic && !(f.Status == finding.StatusOpen && f.ReopenCount >= finding.ChronicThreshold) {
			continue
		}
		if f.Suppressed {
			continue
		}

		item := Item{
			ID: id, Kind: "finding", Detector: f.Detector, File: f.File,
			Tier: int(f.Tier), Confidence: f.Confidence, Summary: f.Summary,
			Detail: f.Detail, Status: string(f.Status), ReopenCount: f.ReopenCount,
			Lang: f.Lang,
		}
		item.IsReview = isReviewFinding(f.Detector)
		item.IsSubjective = isSubjectiveFinding(f.Detector)

		switch {
		case item.IsReview:
			item.EffectiveTier = 1
		case item.IsSubjective:
			item.EffectiveTier = 4
		default:
			item.EffectiveTier = int(f.Tier)
			if item.EffectiveTier == 0 {
				item.EffectiveTier = 3
			}
		}

		if item.IsReview {
			item.ReviewWeight = reviewFindingWeight(f.Confidence, f.Detail)
		}
		if item.IsSubjective {
			dimName, _ := f.Detail["dimension_name"].(string)
			dimKey, _ := f.Detail["dimension"].(string)
			if dimKey == "" {
				dimKey = Slugify(dimName)
			}
			if v, ok := subjScores[strings.ToLower(dimKey)]; ok {
				item.SubjectiveScore = v
			} else if v, ok := subjScores[strings.ToLower(dimName)]; ok {
				item.SubjectiveScore = v
			} else {
				item.SubjectiveScore = 100.0
			}
		}

		var supported map[string]bool
		var supportedKnown bool
		if f.Lang != "" {
			supported, supportedKnown = supportedFixers(f.Lang, s.LangCapabilities)
		}
		item.PrimaryCommand = PrimaryCommandForFinding(&item, registry, supported, supportedKnown)

		if !ScopeMatches(&item, opts.Scope) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func subjectiveScoreValue(it Item) float64 {
	if it.Kind == "subjective_dimension" {
		if v, ok := it.Detail["strict_score"].(float64); ok {
			return v
		}
		return it.SubjectiveScore
	}
	return it.SubjectiveScore
}

// sortKey produces the tuple used to order items, matching item_sort_key
// exactly: review items first, then by (effective_tier, mechanical-before-
// subjective, secondary, id).
type sortKey struct {
	group      int // 0 = review (always first), 1 = everything else
	tier       int
	subGroup   int // 0 = mechanical, 1 = subjective (within a tier)
	confidence int
	negReview  float64
	negCount   int
	subjective float64
	id         string
}

func itemSortKey(it Item) sortKey {
	if it.IsReview {
		return sortKey{group: 0, negReview: -it.ReviewWeight, confidence: confidenceRank(it.Confidence), id: it.ID}
	}
	if it.Kind == "subjective_dimension" || it.IsSubjective {
		return sortKey{group: 1, tier: it.EffectiveTier, subGroup: 1, subjective: subjectiveScoreValue(it), id: it.ID}
	}
	count := 0
	if c, ok := it.Detail["count"].(int); ok {
		count = c
	} else if c, ok := it.Detail["count"].(float64); ok {
		count = int(c)
	}
	return sortKey{group: 1, tier: it.EffectiveTier, subGroup: 0, confidence: confidenceRank(it.Confidence), negCount: -count, id: it.ID}
}

func less(a, b sortKey) bool {
	if a.group != b.group {
		return a.group < b.group
	}
	if a.group == 0 {
		if a.negReview != b.negReview {
			return a.negReview < b.negReview
		}
		if a.confidence != b.confidence {
			return a.confidence < b.confidence
		}
		return a.id < b.id
	}
	if a.tier != b.tier {
		return a.tier < b.tier
	}
	if a.subGroup != b.subGroup {
		return a.subGroup < b.subGroup
	}
	if a.subGroup == 1 {
		if a.subjective != b.subjective {
			return a.subjective < b.subjective
		}
		return a.id < b.id
	}
	if a.confidence != b.confidence {
		return a.confidence < b.confidence
	}
	if a.negCount != b.negCount {
		return a.negCount < b.negCount
	}
	return a.id < b.id
}

func tierCounts(items []Item) map[int]int {
	counts := map[int]int{1: 0, 2: 0, 3: 0, 4: 0}
	for _, it := range items {
		t := it.EffectiveTier
		if t == 0 {
			t = 3
		}
		counts[t]++
	}
	return counts
}

// chooseFallbackTier picks the available tier minimizing
// (abs(tier-requested), tier) — ties break toward the lower tier number.
func chooseFallbackTier(requested int, counts map[int]int) (int, bool) {
	best := 0
	found := false
	bestDist := 1 << 30
	for tier := 1; tier <= 4; tier++ {
		if counts[tier] <= 0 {
			continue
		}
		dist := requested - tier
		if dist < 0 {
			dist = -dist
		}
		if !found || dist < bestDist || (dist == bestDist && tier < best) {
			best, bestDist, found = tier, dist, true
		}
	}
	return best, found
}

// filterSkipped drops items the plan has skipped, unless the caller asked
// to include them.
func filterSkipped(items []Item, p *plan.Plan, includeSkipped bool) []Item {
	if p == nil || len(p.Skipped) == 0 || includeSkipped {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if _, skipped := p.Skipped[it.ID]; skipped {
			continue
		}
		out = append(out, it)
	}
	return out
}

// clusterFor returns the auto-cluster an item belongs to, if any. Manual
// clusters are never eligible for collapsing.
func clusterFor(p *plan.Plan, id string) (plan.Cluster, bool) {
	if p == nil {
		return plan.Cluster{}, false
	}
	ov, ok := p.Overrides[id]
	if !ok || ov.Cluster == "" {
		return plan.Cluster{}, false
	}
	c, ok := p.Clusters[ov.Cluster]
	if !ok || !c.Auto {
		return plan.Cluster{}, false
	}
	return c, true
}

// filterToCluster keeps only the members of the focused cluster, expanded
// rather than collapsed.
func filterToCluster(items []Item, p *plan.Plan, clusterName string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if c, ok := clusterFor(p, it.ID); ok && c.Name == clusterName {
			out = append(out, it)
		}
	}
	return out
}

// collapseClusters replaces consecutive runs of items belonging to the same
// auto cluster with a single cluster item carrying a member count and a
// tier range, the way a triage list folds related findings under one entry.
// Runs of fewer than two members are left expanded.
func collapseClusters(items []Item, p *plan.Plan) []Item {
	out := make([]Item, 0, len(items))
	i := 0
	for i < len(items) {
		c, ok := clusterFor(p, items[i].ID)
		if !ok {
			out = append(out, items[i])
			i++
			continue
		}
		j := i
		minTier, maxTier := items[i].EffectiveTier, items[i].EffectiveTier
		for j < len(items) {
			cj, okj := clusterFor(p, items[j].ID)
			if !okj || cj.Name != c.Name {
				break
			}
			if items[j].EffectiveTier < minTier {
				minTier = items[j].EffectiveTier
			}
			if items[j].EffectiveTier > maxTier {
				maxTier = items[j].EffectiveTier
			}
			j++
		}
		if j-i < 2 {
			out = append(out, items[i])
			i++
			continue
		}
		out = append(out, collapsedClusterItem(c, j-i, minTier, maxTier))
		i = j
	}
	return out
}

func collapsedClusterItem(c plan.Cluster, members, minTier, maxTier int) Item {
	tierRange := "T" + strconv.Itoa(minTier)
	if maxTier != minTier {
		tierRange = "T" + strconv.Itoa(minTier) + "-T" + strconv.Itoa(maxTier)
	}
	primary := c.Action
	if primary == "" {
		primary = "desloppify next --cluster " + c.Name
	}
	return Item{
		ID:             c.Name,
		Kind:           "cluster",
		Detector:       "cluster",
		Tier:           minTier,
		EffectiveTier:  minTier,
		Summary:        fmt.Sprintf("[%d items] %s", members, c.Description),
		Detail:         map[string]any{"cluster_name": c.Name, "tier_range": tierRange},
		Status:         "open",
		MemberCount:    members,
		ClusterName:    c.Name,
		PrimaryCommand: primary,
	}
}

// itemExplain describes the ranking factors and policy behind one item's
// position in the queue, attached only when the caller asked for --explain.
func itemExplain(it Item) Explain {
	switch {
	case it.IsReview:
		factors := []string{fmt.Sprintf("confidence=%s (weight %.1f)", it.Confidence, it.ReviewWeight)}
		if holistic, _ := it.Detail["holistic"].(bool); holistic {
			factors = append(factors, "holistic finding: weight x10")
		}
		return Explain{
			Kind: it.Kind, EffectiveTier: it.EffectiveTier,
			Policy:         "Open review findings are always ranked first, ordered by confidence weight (holistic findings weighted highest).",
			RankingFactors: factors,
		}
	case it.Kind == "subjective_dimension":
		return Explain{
			Kind: it.Kind, EffectiveTier: it.EffectiveTier,
			Policy:         "Subjective dimensions are always queued at tier 4, ordered by how far their strict score sits below target.",
			RankingFactors: []string{fmt.Sprintf("strict_score=%.1f", it.SubjectiveScore)},
		}
	case it.Kind == "cluster":
		return Explain{
			Kind: it.Kind, EffectiveTier: it.EffectiveTier,
			Policy:         "Collapsed auto-clusters rank at the tier of their lowest-numbered member.",
			RankingFactors: []string{fmt.Sprintf("member_count=%d", it.MemberCount)},
		}
	default:
		factors := []string{fmt.Sprintf("tier=%d", it.EffectiveTier), fmt.Sprintf("confidence=%s", it.Confidence)}
		policy := "Mechanical findings are ordered by tier, then confidence, then cluster size."
		if it.IsSubjective {
			policy = "Subjective findings are forced to tier 4 and ordered by how far their dimension's strict score sits below target."
			factors = append(factors, fmt.Sprintf("strict_score=%.1f", it.SubjectiveScore))
		} else if count, ok := it.Detail["count"]; ok {
			factors = append(factors, fmt.Sprintf("count=%v", count))
		}
		return Explain{Kind: it.Kind, EffectiveTier: it.EffectiveTier, Policy: policy, RankingFactors: factors}
	}
}

// PlanAwareQueueCount reports how many items the plan-aware, cluster-
// collapsed queue still has open — the same view the plan-start score
// freeze watches to decide whether a work cycle has drained.
func PlanAwareQueueCount(s *finding.State, registry detect.Registry, p *plan.Plan) (int, error) {
	res, err := Build(s, registry, BuildOptions{
		Status: "open", Plan: p, CollapseClusters: true,
	})
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

func groupItems(items []Item, by string) map[string][]Item {
	grouped := map[string][]Item{}
	for _, it := range items {
		var key string
		switch by {
		case "file":
			key = it.File
		case "detector":
			key = it.Detector
		case "tier":
			key = "T" + strconv.Itoa(it.EffectiveTier)
		default:
			key = "items"
		}
		grouped[key] = append(grouped[key], it)
	}
	return grouped
}


// Build constructs the ranked, filtered work queue.
func Build(s *finding.State, registry detect.Registry, opts BuildOptions) (Result, error) {
	if opts.Status == "" {
		opts.Status = "open"
	}
	if !allStatuses()[opts.Status] {
		return Result{}, errs.Validationf("queue.build", "unsupported status filter: %s", opts.Status)
	}
	threshold := opts.SubjectiveThreshold
	if threshold <= 0 {
		threshold = 95
	}
	if threshold > 100 {
		threshold = 100
	}

	items := buildFindingItems(s, registry, opts)

	if opts.IncludeSubjective && (opts.Status == "open" || opts.Status == "all") && !opts.Chronic {
		for _, si := range buildSubjectiveItems(s, threshold) {
			if ScopeMatches(&si, opts.Scope) {
				items = append(items, si)
			}
		}
	}

	items = filterSkipped(items, opts.Plan, opts.IncludeSkipped)
	sort.SliceStable(items, func(i, j int) bool { return less(itemSortKey(items[i]), itemSortKey(items[j])) })

	if opts.Plan != nil {
		if opts.Cluster != "" {
			items = filterToCluster(items, opts.Plan, opts.Cluster)
		} else if opts.CollapseClusters {
			items = collapseClusters(items, opts.Plan)
		}
	}
	counts := tierCounts(items)

	var selectedTier *int
	var fallbackReason string
	filtered := items

	if opts.Tier != nil {
		requested := *opts.Tier
		selectedTier = opts.Tier
		var tierItems []Item
		for _, it := range items {
			if it.EffectiveTier == requested {
				tierItems = append(tierItems, it)
			}
		}
		if len(tierItems) == 0 {
			if !opts.NoTierFallback {
				if chosen, ok := chooseFallbackTier(requested, counts); ok {
					selectedTier = &chosen
					for _, it := range items {
						if it.EffectiveTier == chosen {
							tierItems = append(tierItems, it)
						}
					}
					fallbackReason = "Requested T" + strconv.Itoa(requested) + " has 0 open -> showing T" + strconv.Itoa(chosen) + " (nearest non-empty)."
				}
			} else {
				fallbackReason = "Requested T" + strconv.Itoa(requested) + " has 0 open."
			}
		}
		filtered = tierItems
	}

	total := len(filtered)
	if opts.Count > 0 && opts.Count < len(filtered) {
		filtered = filtered[:opts.Count]
	}

	var availableTiers []int
	for tier := 1; tier <= 4; tier++ {
		if counts[tier] > 0 {
			availableTiers = append(availableTiers, tier)
		}
	}

	if opts.Explain {
		for i := range filtered {
			e := itemExplain(filtered[i])
			filtered[i].Explain = &e
		}
	}

	return Result{
		Items: filtered, Total: total, TierCounts: counts,
		RequestedTier: opts.Tier, SelectedTier: selectedTier,
		FallbackReason: fallbackReason, AvailableTiers: availableTiers,
		Grouped: groupItems(filtered, "item"),
	}, nil
}
