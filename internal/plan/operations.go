package plan

import (
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
)

func removeString(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeIDFromLists(p *Plan, id string) {
	p.QueueOrder = removeString(p.QueueOrder, id)
	delete(p.Skipped, id)
}

// Position is a queue-order insertion specifier.
type Position struct {
	Kind   string // "top" | "bottom" | "before" | "after" | "up" | "down"
	Target string
	Offset int
}

func resolvePosition(order []string, pos Position, movingIDs []string) int {
	moving := make(map[string]bool, len(movingIDs))
	for _, id := range movingIDs {
		moving[id] = true
	}

	switch pos.Kind {
	case "top":
		return 0
	case "bottom":
		return len(order)
	case "before":
		if pos.Target == "" {
			return 0
		}
		for i, id := range order {
			if id == pos.Target && !moving[id] {
				return i
			}
		}
		return 0
	case "after":
		if pos.Target == "" {
			return len(order)
		}
		for i, id := range order {
			if id == pos.Target && !moving[id] {
				return i + 1
			}
		}
		return len(order)
	case "up":
		if len(movingIDs) == 0 {
			return 0
		}
		first := movingIDs[0]
		clean := make([]string, 0, len(order))
		for _, id := range order {
			if !moving[id] {
				clean = append(clean, id)
			}
		}
		idx := -1
		for i, id := range clean {
			if id == first {
				idx = i
				break
			}
		}
		if idx == -1 {
			if v := len(clean) - pos.Offset; v > 0 {
				return v
			}
			return 0
		}
		if v := idx - pos.Offset; v > 0 {
			return v
		}
		return 0
	case "down":
		if len(movingIDs) == 0 {
			return len(order)
		}
		first := movingIDs[0]
		clean := make([]string, 0, len(order))
		for _, id := range order {
			if !moving[id] {
				clean = append(clean, id)
			}
		}
		idx := -1
		for i, id := range clean {
			if id == first {
				idx = i
				break
			}
		}
		if idx == -1 {
			return len(clean)
		}
		if v := idx + pos.Offset; v < len(clean) {
			return v
		}
		return len(clean)
	default:
		return len(order)
	}
}

// MoveItems relocates findingIDs within QueueOrder, removing them from
// Skipped first. Returns the count moved.
func MoveItems(p *Plan, findingIDs []string, pos Position) int {
	EnsureDefaults(p)
	for _, id := range findingIDs {
		delete(p.Skipped, id)
	}
	for _, id := range findingIDs {
		p.QueueOrder = removeString(p.QueueOrder, id)
	}
	idx := resolvePosition(p.QueueOrder, pos, findingIDs)

	out := make([]string, 0, len(p.QueueOrder)+len(findingIDs))
	out = append(out, p.QueueOrder[:idx]...)
	out = append(out, findingIDs...)
	out = append(out, p.QueueOrder[idx:]...)
	p.QueueOrder = out
	return len(findingIDs)
}

// SkipOptions carries the fields a skip entry records.
type SkipOptions struct {
	Kind        SkipKind
	Reason      string
	Note        string
	Attestation string
	ReviewAfter int
	ScanCount   int
}

// requiredForSkip validates the per-kind note/attestation requirements:
// permanent skips need a note and an attestation, false_positive needs an
// attestation only, temporary needs neither.
func requiredForSkip(opts SkipOptions) error {
	switch opts.Kind {
	case SkipPermanent:
		if opts.Note == "" {
			return errs.Validationf("plan.skip", "permanent skip requires --note")
		}
		if opts.Attestation == "" {
			return errs.Validationf("plan.skip", "permanent skip requires --attest")
		}
	case SkipFalsePositive:
		if opts.Attestation == "" {
			return errs.Validationf("plan.skip", "false_positive skip requires --attest")
		}
	case SkipTemporary, SkipSynthesizedOut:
	default:
		return errs.Validationf("plan.skip", "unknown skip kind %q", opts.Kind)
	}
	return nil
}

// SkipItems moves findingIDs into Skipped with the given disposition.
func SkipItems(p *Plan, findingIDs []string, opts SkipOptions, now time.Time) (int, error) {
	if err := requiredForSkip(opts); err != nil {
		return 0, err
	}
	EnsureDefaults(p)
	count := 0
	for _, id := range findingIDs {
		removeIDFromLists(p, id)
		p.Skipped[id] = SkipEntry{
			FindingID:     id,
			Kind:          opts.Kind,
			Reason:        opts.Reason,
			Note:          opts.Note,
			Attestation:   opts.Attestation,
			CreatedAt:     now,
			ReviewAfter:   opts.ReviewAfter,
			SkippedAtScan: opts.ScanCount,
		}
		count++
	}
	return count, nil
}

// UnskipItems brings findingIDs back into QueueOrder. It returns the count
// unskipped and the subset that were permanent/false_positive dispositions
// — the caller (the finding store) must reopen those ids since a permanent
// disposition implies the underlying finding was left StatusWontfix or
// StatusFalsePositive rather than StatusOpen.
func UnskipItems(p *Plan, findingIDs []string) (int, []string) {
	EnsureDefaults(p)
	count := 0
	var needReopen []string
	for _, id := range findingIDs {
		entry, ok := p.Skipped[id]
		if !ok {
			continue
		}
		delete(p.Skipped, id)
		if entry.Kind == SkipPermanent || entry.Kind == SkipFalsePositive {
			needReopen = append(needReopen, id)
		}
		if !contains(p.QueueOrder, id) {
			p.QueueOrder = append(p.QueueOrder, id)
		}
		count++
	}
	return count, needReopen
}

// ResurfaceStaleSkips moves temporary skips whose review_after threshold
// has elapsed back into QueueOrder.
func ResurfaceStaleSkips(p *Plan, currentScanCount int) []string {
	EnsureDefaults(p)
	var resurfaced []string
	for id, entry := range p.Skipped {
		if entry.Kind != SkipTemporary || entry.ReviewAfter <= 0 {
			continue
		}
		if currentScanCount >= entry.SkippedAtScan+entry.ReviewAfter {
			delete(p.Skipped, id)
			if !contains(p.QueueOrder, id) {
				p.QueueOrder = append(p.QueueOrder, id)
			}
			resurfaced = append(resurfaced, id)
		}
	}
	return resurfaced
}

func ensureOverride(p *Plan, id string, now time.Time) ItemOverride {
	ov, ok := p.Overrides[id]
	if !ok {
		ov = ItemOverride{FindingID: id, CreatedAt: now}
	}
	return ov
}

// DescribeFinding sets or clears a finding's manual description.
func DescribeFinding(p *Plan, id, description string, now time.Time) {
	EnsureDefaults(p)
	ov := ensureOverride(p, id, now)
	ov.Description = description
	ov.UpdatedAt = now
	p.Overrides[id] = ov
}

// AnnotateFinding sets or clears a finding's manual note.
func AnnotateFinding(p *Plan, id, note string, now time.Time) {
	EnsureDefaults(p)
	ov := ensureOverride(p, id, now)
	ov.Note = note
	ov.UpdatedAt = now
	p.Overrides[id] = ov
}

// CreateCluster creates a new manual cluster. "auto/"-prefixed names are
// reserved for the auto-cluster engine.
func CreateCluster(p *Plan, name, description, action string, now time.Time) (Cluster, error) {
	EnsureDefaults(p)
	if len(name) >= 5 && name[:5] == "auto/" {
		return Cluster{}, errs.Validationf("plan.cluster.create", "cluster names starting with 'auto/' are reserved: %q", name)
	}
	if _, exists := p.Clusters[name]; exists {
		return Cluster{}, errs.Validationf("plan.cluster.create", "cluster %q already exists", name)
	}
	c := Cluster{
		Name:        name,
		Description: description,
		FindingIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
		Action:      action,
	}
	p.Clusters[name] = c
	return c, nil
}

// AddToCluster adds findingIDs to an existing cluster, recording the
// membership in each id's override as well.
func AddToCluster(p *Plan, clusterName string, findingIDs []string, now time.Time) (int, error) {
	EnsureDefaults(p)
	c, ok := p.Clusters[clusterName]
	if !ok {
		return 0, errs.Referentialf("plan.cluster.add", "cluster %q does not exist", clusterName)
	}
	count := 0
	for _, id := range findingIDs {
		if !contains(c.FindingIDs, id) {
			c.FindingIDs = append(c.FindingIDs, id)
			count++
		}
		ov := ensureOverride(p, id, now)
		ov.Cluster = clusterName
		ov.UpdatedAt = now
		p.Overrides[id] = ov
	}
	c.UpdatedAt = now
	p.Clusters[clusterName] = c
	return count, nil
}

// RemoveFromCluster removes findingIDs from a cluster; removing any member
// from an auto-generated cluster marks it UserModified so the auto-cluster
// engine never silently re-adds what the user took out.
func RemoveFromCluster(p *Plan, clusterName string, findingIDs []string, now time.Time) (int, error) {
	EnsureDefaults(p)
	c, ok := p.Clusters[clusterName]
	if !ok {
		return 0, errs.Referentialf("plan.cluster.remove", "cluster %q does not exist", clusterName)
	}
	count := 0
	for _, id := range findingIDs {
		if contains(c.FindingIDs, id) {
			c.FindingIDs = removeString(c.FindingIDs, id)
			count++
		}
		if ov, ok := p.Overrides[id]; ok && ov.Cluster == clusterName {
			ov.Cluster = ""
			ov.UpdatedAt = now
			p.Overrides[id] = ov
		}
	}
	if count > 0 && c.Auto {
		c.UserModified = true
	}
	c.UpdatedAt = now
	p.Clusters[clusterName] = c
	return count, nil
}

// DeleteCluster removes a cluster and clears cluster refs from overrides,
// returning the orphaned member ids.
func DeleteCluster(p *Plan, name string, now time.Time) ([]string, error) {
	EnsureDefaults(p)
	c, ok := p.Clusters[name]
	if !ok {
		return nil, errs.Referentialf("plan.cluster.delete", "cluster %q does not exist", name)
	}
	delete(p.Clusters, name)
	orphaned := append([]string(nil), c.FindingIDs...)
	for _, id := range orphaned {
		if ov, ok := p.Overrides[id]; ok && ov.Cluster == name {
			ov.Cluster = ""
			ov.UpdatedAt = now
			p.Overrides[id] = ov
		}
	}
	if p.ActiveCluster == name {
		p.ActiveCluster = ""
	}
	return orphaned, nil
}

// MoveCluster moves every member of a cluster as a contiguous block.
func MoveCluster(p *Plan, clusterName string, pos Position) (int, error) {
	EnsureDefaults(p)
	c, ok := p.Clusters[clusterName]
	if !ok {
		return 0, errs.Referentialf("plan.cluster.move", "cluster %q does not exist", clusterName)
	}
	if len(c.FindingIDs) == 0 {
		return 0, nil
	}
	return MoveItems(p, append([]string(nil), c.FindingIDs...), pos), nil
}

// SetFocus sets the active cluster.
func SetFocus(p *Plan, clusterName string) error {
	EnsureDefaults(p)
	if _, ok := p.Clusters[clusterName]; !ok {
		return errs.Referentialf("plan.focus", "cluster %q does not exist", clusterName)
	}
	p.ActiveCluster = clusterName
	return nil
}

// ClearFocus clears the active cluster.
func ClearFocus(p *Plan) {
	EnsureDefaults(p)
	p.ActiveCluster = ""
}

// Reset clears the plan back to empty, preserving Created.
func Reset(p *Plan, now time.Time) {
	created := p.Created
	*p = *Empty(now)
	p.Created = created
}

// PurgeIDs removes findingIDs from queue_order, skipped, and every
// cluster's membership. Overrides are intentionally left untouched so
// manual descriptions/notes survive for history.
func PurgeIDs(p *Plan, findingIDs []string) int {
	EnsureDefaults(p)
	found := 0
	for _, id := range findingIDs {
		present := false
		if contains(p.QueueOrder, id) {
			p.QueueOrder = removeString(p.QueueOrder, id)
			present = true
		}
		if _, ok := p.Skipped[id]; ok {
			delete(p.Skipped, id)
			present = true
		}
		for name, c := range p.Clusters {
			if contains(c.FindingIDs, id) {
				c.FindingIDs = removeString(c.FindingIDs, id)
				p.Clusters[name] = c
				present = true
			}
		}
		if present {
			found++
		}
	}
	return found
}
