package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theRebelliousNerd/desloppify/internal/zone"
)

// recordingDetector records every file it was handed and returns no
// findings, so tests can assert on which files actually reached it after
// zone filtering.
type recordingDetector struct {
	name string
	seen []string
}

func (d *recordingDetector) Name() string { return d.name }

func (d *recordingDetector) Detect(_ context.Context, _ string, files []string) ([]Finding, error) {
	d.seen = append(d.seen, files...)
	return nil, nil
}

func TestRunAllFiltersVendorFilesFromZonedDetectors(t *testing.T) {
	registry := DefaultRegistry()
	files := []string{"main.go", "vendor/dep.go", "proto/schema.pb.go"}
	zones := zone.BuildIndex(files, nil)

	unused := &recordingDetector{name: "unused_import"}
	results, err := RunAll(context.Background(), "/repo", files, []Detector{unused}, registry, zones)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.ElementsMatch(t, []string{"main.go"}, unused.seen)
}

func TestRunAllLeavesUnregisteredDetectorsUnfiltered(t *testing.T) {
	registry := DefaultRegistry()
	files := []string{"main.go", "vendor/dep.go"}
	zones := zone.BuildIndex(files, nil)

	custom := &recordingDetector{name: "external_linter"}
	_, err := RunAll(context.Background(), "/repo", files, []Detector{custom}, registry, zones)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"main.go", "vendor/dep.go"}, custom.seen)
}

func TestRunAllSortsResultsByDetectorName(t *testing.T) {
	registry := DefaultRegistry()
	files := []string{"main.go"}
	zones := zone.BuildIndex(files, nil)

	detectors := []Detector{
		&recordingDetector{name: "zzz"},
		&recordingDetector{name: "aaa"},
	}
	results, err := RunAll(context.Background(), "/repo", files, detectors, registry, zones)
	require.NoError(t, err)
	require.Equal(t, "aaa", results[0].Detector)
	require.Equal(t, "zzz", results[1].Detector)
}
