// Package zone classifies repository-relative file paths into the six
// zones detector-applicability rules key off of: production, test, config,
// generated, script, and vendor. Classification is path-only (no file
// content is read).
package zone

import (
	"path"
	"strings"
)

// Zone is a per-file classification controlling detector applicability.
type Zone string

const (
	Production Zone = "production"
	Test       Zone = "test"
	Config     Zone = "config"
	Generated  Zone = "generated"
	Script     Zone = "script"
	Vendor     Zone = "vendor"
)

// All lists every zone in a fixed, stable order.
func All() []Zone {
	return []Zone{Production, Test, Config, Generated, Script, Vendor}
}

var vendorDirs = []string{"vendor/", "node_modules/", "third_party/", ".venv/", "dist/", "build/"}
var scriptDirs = []string{"scripts/", "bin/", "tools/", "hack/"}
var configDirs = []string{"config/", ".desloppify/", ".github/"}

var configExt = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true,
}

var generatedSuffixes = []string{".pb.go", "_pb2.py", "_generated.go", ".gen.go", ".generated.go"}

// Classify returns the zone a repository-relative path belongs to.
// overrides (config.Config.Zones: zone name -> path-prefix globs) are
// checked first and win over every built-in heuristic below.
func Classify(relPath string, overrides map[string][]string) Zone {
	clean := strings.ReplaceAll(relPath, "\\", "/")
	clean = strings.TrimPrefix(clean, "./")

	for _, z := range All() {
		for _, pattern := range overrides[string(z)] {
			if matchGlob(pattern, clean) {
				return z
			}
		}
	}

	lower := strings.ToLower(clean)
	base := path.Base(clean)

	for _, d := range vendorDirs {
		if strings.Contains(lower, "/"+d) || strings.HasPrefix(lower, d) {
			return Vendor
		}
	}
	for _, suf := range generatedSuffixes {
		if strings.HasSuffix(lower, suf) {
			return Generated
		}
	}
	for _, d := range scriptDirs {
		if strings.Contains(lower, "/"+d) || strings.HasPrefix(lower, d) {
			return Script
		}
	}
	for _, d := range configDirs {
		if strings.Contains(lower, "/"+d) || strings.HasPrefix(lower, d) {
			return Config
		}
	}
	if ext := path.Ext(base); configExt[ext] {
		return Config
	}
	if isTestPath(lower, base) {
		return Test
	}
	return Production
}

func isTestPath(lower, base string) bool {
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	case strings.HasSuffix(base, "_test.py"), strings.HasSuffix(base, ".test.ts"), strings.HasSuffix(base, ".test.js"), strings.HasSuffix(base, ".spec.ts"):
		return true
	case strings.Contains(lower, "/test/"), strings.Contains(lower, "/tests/"), strings.HasPrefix(lower, "test/"), strings.HasPrefix(lower, "tests/"):
		return true
	}
	return false
}

// MatchGlob is matchGlob's exported form, for callers outside this package
// that need the same "/**"-extended glob semantics (e.g. the scan command's
// file-discovery exclude list).
func MatchGlob(pattern, name string) bool { return matchGlob(pattern, name) }

// matchGlob supports the subset of shell globbing path.Match gives us, plus
// a trailing "/**" meaning "this prefix and everything under it" (path.Match
// has no recursive-directory wildcard of its own).
func matchGlob(pattern, name string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return name == prefix || strings.HasPrefix(name, prefix+"/")
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// Index maps every scanned file to its resolved zone.
type Index map[string]Zone

// BuildIndex classifies every file in files against overrides.
func BuildIndex(files []string, overrides map[string][]string) Index {
	idx := make(Index, len(files))
	for _, f := range files {
		idx[f] = Classify(f, overrides)
	}
	return idx
}

// FilterEligible returns the subset of files whose zone is in eligible.
func FilterEligible(files []string, idx Index, eligible map[Zone]bool) []string {
	if eligible == nil {
		return files
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if eligible[idx[f]] {
			out = append(out, f)
		}
	}
	return out
}
