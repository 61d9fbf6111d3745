package synthesis

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
	"github.com/theRebelliousNerd/desloppify/internal/plan"
)

// Stage names, matching the on-disk synthesis_stages keys.
const (
	StageObserve  = "observe"
	StageReflect  = "reflect"
	StageOrganize = "organize"
)

// StageRecord is one completed stage's evidence, stored under
// epic_synthesis_meta.synthesis_stages.<stage>.
type StageRecord struct {
	Stage               string    `json:"stage"`
	Report              string    `json:"report"`
	CitedIDs            []string  `json:"cited_ids"`
	Timestamp           time.Time `json:"timestamp"`
	FindingCount        int       `json:"finding_count"`
	RecurringDimensions []string  `json:"recurring_dimensions,omitempty"`
}

// ClusterGap names a manual cluster missing required enrichment.
type ClusterGap struct {
	Name    string
	Missing []string
}

// CompletionSummary is returned by Complete/ConfirmExisting once the
// synthesis cycle has been recorded and synthesis::pending removed.
type CompletionSummary struct {
	Organized           int
	Total               int
	ClusterCount        int
	EffectiveStrategy   string
}

func stagesMeta(meta map[string]any) map[string]any {
	if v, ok := meta["synthesis_stages"].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func stageRecord(meta map[string]any, stage string) (StageRecord, bool) {
	stages := stagesMeta(meta)
	raw, ok := stages[stage]
	if !ok {
		return StageRecord{}, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return StageRecord{}, false
	}
	var rec StageRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return StageRecord{}, false
	}
	return rec, true
}

func setStageRecord(meta map[string]any, stage string, rec StageRecord) {
	stages := stagesMeta(meta)
	b, _ := json.Marshal(rec)
	var asMap map[string]any
	_ = json.Unmarshal(b, &asMap)
	stages[stage] = asMap
	meta["synthesis_stages"] = stages
}

func minReportChars(findingCount int) int {
	if findingCount <= 3 {
		return 50
	}
	return 100
}

func openReviewFindings(s *finding.State) map[string]*finding.Finding {
	out := map[string]*finding.Finding{}
	for id, f := range s.Findings {
		if f.Status == finding.StatusOpen && isReviewDetector(f.Detector) {
			out[id] = f
		}
	}
	return out
}

func synthesizedIDSet(meta map[string]any) map[string]bool {
	out := map[string]bool{}
	raw, ok := meta["synthesized_ids"].([]any)
	if !ok {
		return out
	}
	for _, v := range raw {
		if id, ok := v.(string); ok {
			out[id] = true
		}
	}
	return out
}

// resolvedSinceLast returns the full finding objects for ids that were
// open-review at the last synthesis snapshot but are no longer (resolved,
// or otherwise no longer open-review).
func resolvedSinceLast(s *finding.State, meta map[string]any) map[string]*finding.Finding {
	prior := synthesizedIDSet(meta)
	current := openReviewFindings(s)
	out := map[string]*finding.Finding{}
	for id := range prior {
		if _, stillOpen := current[id]; stillOpen {
			continue
		}
		if f, ok := s.Findings[id]; ok {
			out[id] = f
		}
	}
	return out
}

func dimensionOf(f *finding.Finding) string {
	if f.Detail == nil {
		return ""
	}
	dim, _ := f.Detail["dimension"].(string)
	return dim
}

type recurringInfo struct {
	Open     []string
	Resolved []string
}

// detectRecurringPatterns finds dimensions with both open and
// previously-resolved findings — a loop signal: similar issues recur after
// earlier fixes.
func detectRecurringPatterns(open, resolved map[string]*finding.Finding) map[string]recurringInfo {
	openByDim := map[string][]string{}
	for id, f := range open {
		if dim := dimensionOf(f); dim != "" {
			openByDim[dim] = append(openByDim[dim], id)
		}
	}
	resolvedByDim := map[string][]string{}
	for id, f := range resolved {
		if dim := dimensionOf(f); dim != "" {
			resolvedByDim[dim] = append(resolvedByDim[dim], id)
		}
	}
	out := map[string]recurringInfo{}
	for dim, openIDs := range openByDim {
		resolvedIDs, ok := resolvedByDim[dim]
		if !ok {
			continue
		}
		sort.Strings(openIDs)
		sort.Strings(resolvedIDs)
		out[dim] = recurringInfo{Open: openIDs, Resolved: resolvedIDs}
	}
	return out
}

func manualClustersWithFindings(p *plan.Plan) []string {
	var out []string
	for name, c := range p.Clusters {
		if len(c.FindingIDs) > 0 && !c.Auto {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func unenrichedClusters(p *plan.Plan) []ClusterGap {
	var gaps []ClusterGap
	for name, c := range p.Clusters {
		if len(c.FindingIDs) == 0 || c.Auto {
			continue
		}
		var missing []string
		if strings.TrimSpace(c.Description) == "" {
			missing = append(missing, "description")
		}
		if len(c.ActionSteps) == 0 {
			missing = append(missing, "action_steps")
		}
		if len(missing) > 0 {
			gaps = append(gaps, ClusterGap{Name: name, Missing: missing})
		}
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Name < gaps[j].Name })
	return gaps
}

func anyClustersWithFindings(p *plan.Plan) []string {
	var out []string
	for name, c := range p.Clusters {
		if len(c.FindingIDs) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// synthesisCoverage returns (organized, total) over queue_order minus the
// synthesis::pending placeholder itself.
func synthesisCoverage(p *plan.Plan) (organized, total int) {
	inCluster := map[string]bool{}
	for _, c := range p.Clusters {
		for _, id := range c.FindingIDs {
			inCluster[id] = true
		}
	}
	for _, id := range p.QueueOrder {
		if id == plan.SynthesisPendingID {
			continue
		}
		total++
		if inCluster[id] {
			organized++
		}
	}
	return organized, total
}

func requireSynthesisQueued(p *plan.Plan, op string) error {
	if !inQueue(p, plan.SynthesisPendingID) {
		return errs.Validationf(op, "synthesis::pending is not in the queue")
	}
	return nil
}

// Observe records the OBSERVE stage: a free-form analysis of themes, root
// causes, and contradictions across open review findings. There is no
// citation gate — the point is genuine analysis, not id-stuffing — only a
// length floor scaled to how many findings there are to analyse.
func Observe(p *plan.Plan, s *finding.State, report string, now time.Time) (StageRecord, error) {
	if strings.TrimSpace(report) == "" {
		return StageRecord{}, errs.Validationf("synthesis.observe", "--report is required")
	}
	if err := requireSynthesisQueued(p, "synthesis.observe"); err != nil {
		return StageRecord{}, err
	}

	open := openReviewFindings(s)
	findingCount := len(open)

	if findingCount == 0 {
		rec := StageRecord{Stage: StageObserve, Report: report, CitedIDs: []string{}, Timestamp: now, FindingCount: 0}
		setStageRecord(p.EpicSynthesisMeta, StageObserve, rec)
		return rec, nil
	}

	min := minReportChars(findingCount)
	if len(report) < min {
		return StageRecord{}, errs.Validationf("synthesis.observe", "report too short: %d chars (minimum %d)", len(report), min)
	}

	validIDs := make(map[string]bool, len(open))
	for id := range open {
		validIDs[id] = true
	}
	cited := ExtractFindingCitations(report, validIDs)

	rec := StageRecord{Stage: StageObserve, Report: report, CitedIDs: cited, Timestamp: now, FindingCount: findingCount}
	setStageRecord(p.EpicSynthesisMeta, StageObserve, rec)
	return rec, nil
}

// Reflect records the REFLECT stage: comparing current findings against
// completed work. If any dimension shows both resolved and newly-open
// findings (a recurrence), the report must name at least one of them —
// forces the agent to actually address the loop rather than re-cluster it
// silently.
func Reflect(p *plan.Plan, s *finding.State, report string, now time.Time) (StageRecord, error) {
	if strings.TrimSpace(report) == "" {
		return StageRecord{}, errs.Validationf("synthesis.reflect", "--report is required")
	}
	if err := requireSynthesisQueued(p, "synthesis.reflect"); err != nil {
		return StageRecord{}, err
	}
	if _, ok := stageRecord(p.EpicSynthesisMeta, StageObserve); !ok {
		return StageRecord{}, errs.Validationf("synthesis.reflect", "cannot reflect: observe stage not complete")
	}

	open := openReviewFindings(s)
	findingCount := len(open)
	min := minReportChars(findingCount)
	if len(report) < min {
		return StageRecord{}, errs.Validationf("synthesis.reflect", "report too short: %d chars (minimum %d)", len(report), min)
	}

	resolved := resolvedSinceLast(s, p.EpicSynthesisMeta)
	recurring := detectRecurringPatterns(open, resolved)
	var recurringDims []string
	for dim := range recurring {
		recurringDims = append(recurringDims, dim)
	}
	sort.Strings(recurringDims)

	if len(recurringDims) > 0 {
		lower := strings.ToLower(report)
		mentioned := false
		for _, dim := range recurringDims {
			if strings.Contains(lower, strings.ToLower(dim)) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			return StageRecord{}, errs.Validationf("synthesis.reflect",
				"recurring patterns detected but not addressed in report — mention at least one recurring dimension name")
		}
	}

	rec := StageRecord{
		Stage: StageReflect, Report: report, CitedIDs: []string{}, Timestamp: now,
		FindingCount: findingCount, RecurringDimensions: recurringDims,
	}
	setStageRecord(p.EpicSynthesisMeta, StageReflect, rec)
	return rec, nil
}

// Organize records the ORGANIZE stage. Unlike observe/reflect it gates on
// plan data enrichment rather than report content: every manual cluster
// with findings needs a description and action steps before the agent can
// claim the codebase is organized.
func Organize(p *plan.Plan, report string, now time.Time) (StageRecord, error) {
	if err := requireSynthesisQueued(p, "synthesis.organize"); err != nil {
		return StageRecord{}, err
	}
	if _, ok := stageRecord(p.EpicSynthesisMeta, StageReflect); !ok {
		if _, ok := stageRecord(p.EpicSynthesisMeta, StageObserve); !ok {
			return StageRecord{}, errs.Validationf("synthesis.organize", "cannot organize: observe stage not complete")
		}
		return StageRecord{}, errs.Validationf("synthesis.organize", "cannot organize: reflect stage not complete")
	}

	manual := manualClustersWithFindings(p)
	if len(manual) == 0 {
		if len(anyClustersWithFindings(p)) > 0 {
			return StageRecord{}, errs.Validationf("synthesis.organize", "cannot organize: only auto-clusters exist; create manual clusters grouping findings by root cause")
		}
		return StageRecord{}, errs.Validationf("synthesis.organize", "cannot organize: no clusters with findings exist")
	}

	if gaps := unenrichedClusters(p); len(gaps) > 0 {
		return StageRecord{}, errs.Validationf("synthesis.organize", "cannot organize: %d cluster(s) need enrichment (description + action_steps)", len(gaps))
	}

	if strings.TrimSpace(report) == "" {
		return StageRecord{}, errs.Validationf("synthesis.organize", "--report is required")
	}
	if len(report) < 100 {
		return StageRecord{}, errs.Validationf("synthesis.organize", "report too short: %d chars (minimum 100)", len(report))
	}

	rec := StageRecord{Stage: StageOrganize, Report: report, CitedIDs: []string{}, Timestamp: now, FindingCount: len(manual)}
	setStageRecord(p.EpicSynthesisMeta, StageOrganize, rec)
	return rec, nil
}

func strategyOK(strategy string) bool {
	return strings.ToLower(strings.TrimSpace(strategy)) == "same"
}

func validateStrategy(op, strategy string) error {
	if strings.TrimSpace(strategy) == "" {
		return errs.Validationf(op, "--strategy is required")
	}
	if !strategyOK(strategy) && len(strings.TrimSpace(strategy)) < 200 {
		return errs.Validationf(op, "strategy too short: %d chars (minimum 200)", len(strings.TrimSpace(strategy)))
	}
	return nil
}

// Complete validates the full OBSERVE->REFLECT->ORGANIZE chain (re-checked
// here so a hand-edited plan.json can't bypass the organize gate) and, if
// it passes, applies completion.
func Complete(p *plan.Plan, s *finding.State, strategy string, now time.Time) (CompletionSummary, error) {
	if err := requireSynthesisQueued(p, "synthesis.complete"); err != nil {
		return CompletionSummary{}, err
	}

	if _, ok := stageRecord(p.EpicSynthesisMeta, StageOrganize); !ok {
		if _, ok := stageRecord(p.EpicSynthesisMeta, StageObserve); !ok {
			return CompletionSummary{}, errs.Validationf("synthesis.complete", "cannot complete: no stages done yet")
		}
		return CompletionSummary{}, errs.Validationf("synthesis.complete", "cannot complete: organize stage not done")
	}

	manual := manualClustersWithFindings(p)
	if len(manual) == 0 && len(anyClustersWithFindings(p)) == 0 {
		return CompletionSummary{}, errs.Validationf("synthesis.complete", "cannot complete: no clusters with findings exist")
	}
	if gaps := unenrichedClusters(p); len(gaps) > 0 {
		return CompletionSummary{}, errs.Validationf("synthesis.complete", "cannot complete: %d cluster(s) still need enrichment", len(gaps))
	}

	organized, total := synthesisCoverage(p)
	if total > 0 && organized == 0 {
		return CompletionSummary{}, errs.Validationf("synthesis.complete", "cannot complete: no findings have been organized into clusters (%d waiting)", total)
	}

	if err := validateStrategy("synthesis.complete", strategy); err != nil {
		return CompletionSummary{}, err
	}

	return applyCompletion(p, s, strategy, now), nil
}

// ConfirmExisting is the fast-track skip path: when the existing cluster
// structure is still valid, the agent confirms it with a note citing at
// least one new/changed finding instead of re-running the full
// observe/reflect/organize chain.
func ConfirmExisting(p *plan.Plan, s *finding.State, note, strategy string, now time.Time) (CompletionSummary, error) {
	if err := requireSynthesisQueued(p, "synthesis.confirm_existing"); err != nil {
		return CompletionSummary{}, err
	}
	if _, ok := stageRecord(p.EpicSynthesisMeta, StageObserve); !ok {
		return CompletionSummary{}, errs.Validationf("synthesis.confirm_existing", "cannot confirm existing: observe stage not complete")
	}
	if _, ok := stageRecord(p.EpicSynthesisMeta, StageReflect); !ok {
		return CompletionSummary{}, errs.Validationf("synthesis.confirm_existing", "cannot confirm existing: reflect stage not complete")
	}

	priorStrategy, _ := p.EpicSynthesisMeta["strategy_summary"].(string)
	if strings.TrimSpace(priorStrategy) == "" {
		return CompletionSummary{}, errs.Validationf("synthesis.confirm_existing", "cannot confirm existing: no prior synthesis has been completed")
	}

	clustersWithFindings := manualClustersWithFindings(p)
	if len(clustersWithFindings) == 0 {
		return CompletionSummary{}, errs.Validationf("synthesis.confirm_existing", "cannot confirm existing: no clusters with findings exist")
	}

	if strings.TrimSpace(note) == "" {
		return CompletionSummary{}, errs.Validationf("synthesis.confirm_existing", "--note is required for confirm-existing")
	}
	if len(note) < 100 {
		return CompletionSummary{}, errs.Validationf("synthesis.confirm_existing", "note too short: %d chars (minimum 100)", len(note))
	}

	if err := validateStrategy("synthesis.confirm_existing", strategy); err != nil {
		return CompletionSummary{}, err
	}

	open := openReviewFindings(s)
	newIDs := map[string]bool{}
	prior := synthesizedIDSet(p.EpicSynthesisMeta)
	for id := range open {
		if !prior[id] {
			newIDs[id] = true
		}
	}
	if len(newIDs) > 0 {
		validIDs := make(map[string]bool, len(open))
		for id := range open {
			validIDs[id] = true
		}
		cited := ExtractFindingCitations(note, validIDs)
		newCited := false
		for _, id := range cited {
			if newIDs[id] {
				newCited = true
				break
			}
		}
		if !newCited {
			return CompletionSummary{}, errs.Validationf("synthesis.confirm_existing",
				"note must cite at least 1 new/changed finding (%d new since last synthesis)", len(newIDs))
		}
	}

	rec := StageRecord{
		Stage: StageOrganize, Report: "[confirmed-existing] " + note, CitedIDs: []string{},
		Timestamp: now, FindingCount: len(clustersWithFindings),
	}
	setStageRecord(p.EpicSynthesisMeta, StageOrganize, rec)

	return applyCompletion(p, s, strategy, now), nil
}

// applyCompletion is the shared completion logic behind Complete and
// ConfirmExisting: it removes synthesis::pending, snapshots the
// synthesized-ids set (so the next cycle's Reflect can detect recurrences),
// stamps the strategy/hash/trigger, and clears the stage record.
func applyCompletion(p *plan.Plan, s *finding.State, strategy string, now time.Time) CompletionSummary {
	organized, total := synthesisCoverage(p)
	clusterCount := 0
	for _, c := range p.Clusters {
		if len(c.FindingIDs) > 0 {
			clusterCount++
		}
	}

	p.QueueOrder = removeFromOrder(p.QueueOrder, plan.SynthesisPendingID)

	meta := p.EpicSynthesisMeta
	currentHash := ReviewFindingSnapshotHash(s)
	meta["finding_snapshot_hash"] = currentHash

	effectiveStrategy, _ := meta["strategy_summary"].(string)
	if !strategyOK(strategy) {
		meta["strategy_summary"] = strategy
		effectiveStrategy = strategy
	}

	meta["trigger"] = "manual_synthesis"
	meta["last_completed_at"] = now
	meta["synthesis_stages"] = map[string]any{}
	delete(meta, "stage_refresh_required")
	delete(meta, "stage_snapshot_hash")

	open := openReviewFindings(s)
	ids := make([]string, 0, len(open))
	for id := range open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshotIDs := make([]any, len(ids))
	for i, id := range ids {
		snapshotIDs[i] = id
	}
	meta["synthesized_ids"] = snapshotIDs

	return CompletionSummary{
		Organized: organized, Total: total, ClusterCount: clusterCount,
		EffectiveStrategy: effectiveStrategy,
	}
}
