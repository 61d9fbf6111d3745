// Package config loads and saves the project-level `.desloppify/config.json`
// document.
package config

import (
	"path/filepath"
	"time"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/persist"
)

// Config is the enumerated key set a project may override. Every field has
// a documented default applied by Default().
type Config struct {
	// TargetStrictScore is the score (0-100) a subjective dimension must
	// reach before it stops generating a synthetic work-queue item.
	// Default 95, configurable per project.
	TargetStrictScore float64 `json:"target_strict_score"`

	// SupersededTTLDays is how long a superseded plan/override entry is
	// kept before the reconciler prunes it.
	SupersededTTLDays int `json:"superseded_ttl_days"`

	// MinClusterSize is the minimum member count an auto-generated cluster
	// must keep before being pruned as stale (the `auto/stale-review`
	// synthetic cluster uses a hardcoded floor of 2 regardless of this
	// value).
	MinClusterSize int `json:"min_cluster_size"`

	// BatchWontfixConfirmThreshold is how many ids a single `resolve
	// --status wontfix` invocation may touch before requiring
	// --confirm-batch-wontfix.
	BatchWontfixConfirmThreshold int `json:"batch_wontfix_confirm_threshold"`

	// DetectorOverridesPath names a detector-registry override file. It is
	// stored and reported by `config get`; nothing reads the file, so the
	// static detector registry is never overlaid.
	DetectorOverridesPath string `json:"detector_overrides_path"`

	// Zones maps a zone name to the path globs it covers, used by the
	// detector-applicability rules in internal/rules.
	Zones map[string][]string `json:"zones"`

	// Exclude lists path globs (relative to the project root, path.Match
	// semantics plus internal/zone's "/**" recursive-prefix extension)
	// never handed to any detector at all, ahead of zone classification.
	Exclude []string `json:"exclude"`

	// Ignore lists finding patterns (same glob/id/hash-suffix/detector-or-
	// file-prefix shape as a resolve/skip pattern) to suppress: a matching
	// open finding gets Suppressed=true rather than being hidden from the
	// store. Unlike Exclude, an ignored finding is still detected, scanned,
	// and scored — just excluded from the lenient/objective issue count.
	Ignore []string `json:"ignore"`

	// IgnoreMetadata records why each Ignore pattern was added, keyed by
	// the pattern string.
	IgnoreMetadata map[string]IgnoreMeta `json:"ignore_metadata"`

	// FindingNoiseBudget caps how many matches `show` surfaces per
	// detector before the rest are hidden behind a count (0 = unlimited).
	FindingNoiseBudget int `json:"finding_noise_budget"`

	// FindingNoiseGlobalBudget caps the total matches `show` surfaces
	// across all detectors, applied after the per-detector budget
	// (0 = unlimited).
	FindingNoiseGlobalBudget int `json:"finding_noise_global_budget"`
}

// IgnoreMeta is one Ignore pattern's provenance.
type IgnoreMeta struct {
	Note    string    `json:"note,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Default returns the configuration used when no config.json exists yet.
func Default() Config {
	return Config{
		TargetStrictScore:            95,
		SupersededTTLDays:            90,
		MinClusterSize:               2,
		BatchWontfixConfirmThreshold: 10,
		DetectorOverridesPath:        ".desloppify/detectors.yaml",
		Zones:                        map[string][]string{},
		IgnoreMetadata:               map[string]IgnoreMeta{},
		FindingNoiseBudget:           10,
	}
}

// Path returns the config.json path rooted at projectDir.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".desloppify", "config.json")
}

// Load reads config.json, returning defaults overlaid with whatever the
// file contains if it exists.
func Load(projectDir string) (Config, error) {
	cfg := Default()
	ok, err := persist.ReadJSON(Path(projectDir), &cfg)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	if cfg.Zones == nil {
		cfg.Zones = map[string][]string{}
	}
	if cfg.IgnoreMetadata == nil {
		cfg.IgnoreMetadata = map[string]IgnoreMeta{}
	}
	return cfg, nil
}

// Save atomically writes cfg to config.json.
func Save(projectDir string, cfg Config) error {
	if err := persist.WriteJSONAtomic(Path(projectDir), cfg); err != nil {
		return err
	}
	return nil
}

// Validate checks invariants a hand-edited config.json might violate.
func (c Config) Validate() error {
	if c.TargetStrictScore < 0 || c.TargetStrictScore > 100 {
		return errs.Validationf("config.validate", "target_strict_score must be within [0,100], got %v", c.TargetStrictScore)
	}
	if c.SupersededTTLDays < 0 {
		return errs.Validationf("config.validate", "superseded_ttl_days must be >= 0, got %d", c.SupersededTTLDays)
	}
	if c.MinClusterSize < 1 {
		return errs.Validationf("config.validate", "min_cluster_size must be >= 1, got %d", c.MinClusterSize)
	}
	return nil
}
