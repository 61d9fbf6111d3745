package detect

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/theRebelliousNerd/desloppify/internal/rules"
	"github.com/theRebelliousNerd/desloppify/internal/zone"
)

// Result is one detector's output, keyed so the caller can merge it into
// the finding store one detector at a time (finding.State.Merge needs the
// detector name to scope its auto-resolve pass).
type Result struct {
	Detector string
	Findings []Finding
}

// RunAll runs every detector over its own zone-filtered file set
// concurrently and returns results in detector-name order, so downstream
// merges are deterministic regardless of goroutine scheduling. The
// detector phase can parallelize freely because each detector only reads
// the filesystem; the merge into the finding store happens afterward,
// serialized by the caller.
//
// zones classifies every file before detectors run; each detector only
// ever sees files in zones it is not excluded from (registry.Meta's
// ExcludedZones), with the applicability decision derived by
// internal/rules rather than an inline per-detector skip check.
func RunAll(ctx context.Context, root string, files []string, detectors []Detector, registry Registry, zones zone.Index) ([]Result, error) {
	exclusions := make(map[string][]string, len(detectors))
	for _, d := range detectors {
		meta, _ := registry.Get(d.Name())
		exclusions[d.Name()] = meta.ExcludedZones
	}
	eligibility, err := rules.ZoneEligibility(zoneNames(), exclusions)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(detectors))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range detectors {
		i, d := i, d
		scoped := zone.FilterEligible(files, zones, toZoneSet(eligibility[d.Name()]))
		g.Go(func() error {
			findings, err := d.Detect(gctx, root, scoped)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = Result{Detector: d.Name(), Findings: findings}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Detector < results[j].Detector })
	return results, nil
}

func zoneNames() []string {
	all := zone.All()
	out := make([]string, len(all))
	for i, z := range all {
		out[i] = string(z)
	}
	return out
}

func toZoneSet(eligible map[string]bool) map[zone.Zone]bool {
	out := make(map[zone.Zone]bool, len(eligible))
	for z, ok := range eligible {
		if ok {
			out[zone.Zone(z)] = true
		}
	}
	return out
}
