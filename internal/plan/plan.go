// Package plan implements the living plan: the user/agent-curated queue of
// work, skip dispositions, manual overrides, and auto/manual clusters that
// sits on top of the finding store.
package plan

import (
	"path/filepath"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/persist"
)

// Version is the current plan.json schema version. Bumped whenever the
// on-disk shape changes in a way Load must migrate.
const Version = 4

// EpicPrefix marks clusters produced by the synthesis engine as opposed to
// ordinary auto/manual clusters.
const EpicPrefix = "epic/"

// SkipKind enumerates the dispositions a skip entry may carry.
type SkipKind string

const (
	SkipTemporary     SkipKind = "temporary"
	SkipPermanent     SkipKind = "permanent"
	SkipFalsePositive SkipKind = "false_positive"
	SkipSynthesizedOut SkipKind = "synthesized_out"
)

func validSkipKinds() map[SkipKind]bool {
	return map[SkipKind]bool{
		SkipTemporary: true, SkipPermanent: true,
		SkipFalsePositive: true, SkipSynthesizedOut: true,
	}
}

// SkipEntry records why a finding was taken out of the active queue.
type SkipEntry struct {
	FindingID     string    `json:"finding_id"`
	Kind          SkipKind  `json:"kind"`
	Reason        string    `json:"reason,omitempty"`
	Note          string    `json:"note,omitempty"`        // required for permanent
	Attestation   string    `json:"attestation,omitempty"` // required for permanent/false_positive
	CreatedAt     time.Time `json:"created_at"`
	ReviewAfter   int       `json:"review_after,omitempty"` // re-surface after N scans, temporary only
	SkippedAtScan int       `json:"skipped_at_scan"`
}

// ItemOverride carries a manual description/note/cluster assignment for a
// single finding id, independent of its position in the queue.
type ItemOverride struct {
	FindingID string    `json:"finding_id"`
	Description string  `json:"description,omitempty"`
	Note      string    `json:"note,omitempty"`
	Cluster   string    `json:"cluster,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cluster groups related finding ids under one queue entry. Auto clusters
// are regenerated every scan unless UserModified; epic/-prefixed clusters
// additionally carry synthesis metadata.
type Cluster struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FindingIDs  []string  `json:"finding_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Auto        bool      `json:"auto"`
	ClusterKey  string    `json:"cluster_key,omitempty"`
	Action      string    `json:"action,omitempty"`
	UserModified bool     `json:"user_modified"`

	// Synthesis (epic/) fields, populated only for EpicPrefix clusters.
	Thesis          string   `json:"thesis,omitempty"`
	Direction       string   `json:"direction,omitempty"`
	RootCause       string   `json:"root_cause,omitempty"`
	Supersedes      []string `json:"supersedes,omitempty"`
	Dismissed       []string `json:"dismissed,omitempty"`
	AgentSafe       bool     `json:"agent_safe,omitempty"`
	DependencyOrder int      `json:"dependency_order,omitempty"`
	ActionSteps     []string `json:"action_steps,omitempty"`
	SourceClusters  []string `json:"source_clusters,omitempty"`
	Status          string   `json:"status,omitempty"`
	SynthesisVersion int     `json:"synthesis_version,omitempty"`
}

// SupersededEntry replaces a finding id that the reconciler determined no
// longer exists in the finding store, keeping a short list of candidate
// replacements so the user can remap a cluster/override reference by hand.
type SupersededEntry struct {
	OriginalID      string    `json:"original_id"`
	OriginalDetector string   `json:"original_detector,omitempty"`
	OriginalFile    string    `json:"original_file,omitempty"`
	OriginalSummary string    `json:"original_summary,omitempty"`
	Status          string    `json:"status"` // "superseded" | "remapped" | "dismissed"
	SupersededAt    time.Time `json:"superseded_at"`
	RemappedTo      string    `json:"remapped_to,omitempty"`
	Candidates      []string  `json:"candidates,omitempty"`
	Note            string    `json:"note,omitempty"`
}

// Plan is the plan.json document.
type Plan struct {
	Version           int                          `json:"version"`
	Created           time.Time                    `json:"created"`
	Updated           time.Time                    `json:"updated"`
	QueueOrder        []string                     `json:"queue_order"`
	Skipped           map[string]SkipEntry         `json:"skipped"`
	ActiveCluster     string                       `json:"active_cluster,omitempty"`
	Overrides         map[string]ItemOverride      `json:"overrides"`
	Clusters          map[string]Cluster           `json:"clusters"`
	Superseded        map[string]SupersededEntry   `json:"superseded"`
	PlanStartScores   map[string]float64           `json:"plan_start_scores"`
	EpicSynthesisMeta map[string]any               `json:"epic_synthesis_meta"`
}

// Empty returns a fresh plan document.
func Empty(now time.Time) *Plan {
	return &Plan{
		Version:           Version,
		Created:           now,
		Updated:           now,
		QueueOrder:        []string{},
		Skipped:           map[string]SkipEntry{},
		Overrides:         map[string]ItemOverride{},
		Clusters:          map[string]Cluster{},
		Superseded:        map[string]SupersededEntry{},
		PlanStartScores:   map[string]float64{},
		EpicSynthesisMeta: map[string]any{},
	}
}

func ensureContainers(p *Plan) {
	if p.QueueOrder == nil {
		p.QueueOrder = []string{}
	}
	if p.Skipped == nil {
		p.Skipped = map[string]SkipEntry{}
	}
	if p.Overrides == nil {
		p.Overrides = map[string]ItemOverride{}
	}
	if p.Clusters == nil {
		p.Clusters = map[string]Cluster{}
	}
	if p.Superseded == nil {
		p.Superseded = map[string]SupersededEntry{}
	}
	if p.PlanStartScores == nil {
		p.PlanStartScores = map[string]float64{}
	}
	if p.EpicSynthesisMeta == nil {
		p.EpicSynthesisMeta = map[string]any{}
	}
}

// EnsureDefaults normalizes a freshly loaded plan: fills missing
// containers and sets a missing version, mirroring ensure_plan_defaults's
// migration chain (this module starts at v4 directly, so there is no v1
// `deferred`-list or v3 top-level `epics` payload to migrate from on disk,
// but the normalization step itself is kept since hand-edited plan.json
// files commonly drop a key).
func EnsureDefaults(p *Plan) {
	if p.Version == 0 {
		p.Version = Version
	}
	ensureContainers(p)
	for name, c := range p.Clusters {
		if c.FindingIDs == nil {
			c.FindingIDs = []string{}
		}
		p.Clusters[name] = c
	}
}

// SynthesisClusters returns the subset of Clusters whose name carries the
// EpicPrefix.
func (p *Plan) SynthesisClusters() map[string]Cluster {
	out := map[string]Cluster{}
	for name, c := range p.Clusters {
		if len(name) >= len(EpicPrefix) && name[:len(EpicPrefix)] == EpicPrefix {
			out[name] = c
		}
	}
	return out
}

// Validate enforces the plan's structural invariants.
func Validate(p *Plan) error {
	queued := map[string]bool{}
	for _, id := range p.QueueOrder {
		queued[id] = true
	}
	var overlap []string
	for id := range p.Skipped {
		if queued[id] {
			overlap = append(overlap, id)
		}
	}
	if len(overlap) > 0 {
		return errs.Validationf("plan.validate", "ids cannot appear in both queue_order and skipped: %v", overlap)
	}
	for id, entry := range p.Skipped {
		if !validSkipKinds()[entry.Kind] {
			return errs.Validationf("plan.validate", "invalid skip kind %q for %s", entry.Kind, id)
		}
	}
	return nil
}

// FreezeScoresIfCycleStarting snapshots the current scores as the
// plan-start baseline the first time a work cycle begins — the queue has
// items and no freeze is active yet. Returns true if it froze. The UI
// keeps showing this frozen strict score, plus queue progress, until the
// queue drains and a rescan clears it.
func (p *Plan) FreezeScoresIfCycleStarting(overall, objective, strict, verified float64, queueRemaining int) bool {
	if len(p.PlanStartScores) > 0 || queueRemaining <= 0 {
		return false
	}
	p.PlanStartScores = map[string]float64{
		"overall": overall, "objective": objective, "strict": strict, "verified": verified,
	}
	return true
}

// ClearScoresIfDrained resets the plan-start freeze once the queue empties,
// so the next work cycle starts from a fresh baseline.
func (p *Plan) ClearScoresIfDrained(queueRemaining int) bool {
	if len(p.PlanStartScores) == 0 || queueRemaining > 0 {
		return false
	}
	p.PlanStartScores = map[string]float64{}
	return true
}

// Path returns the plan.json path rooted at projectDir.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".desloppify", "plan.json")
}

// Load reads plan.json, returning a fresh empty plan on first run.
func Load(projectDir string, now time.Time) (*Plan, error) {
	p := Empty(now)
	ok, err := persist.ReadJSON(Path(projectDir), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Empty(now), nil
	}
	EnsureDefaults(p)
	return p, nil
}

// Save atomically writes p to plan.json.
func Save(projectDir string, p *Plan, now time.Time) error {
	p.Updated = now
	return persist.WriteJSONAtomic(Path(projectDir), p)
}
