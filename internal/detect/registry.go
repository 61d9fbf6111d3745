// Package detect defines the detector/fixer contract and the static
// registry of detector metadata that the work queue and auto-cluster
// engine consult to generate guidance text. Individual language detectors
// are external collaborators; this package ships the interface, the
// registry, and one illustrative reference detector.
package detect

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

// ActionType classifies how a finding in this detector's family is
// typically resolved.
type ActionType string

const (
	ActionAutoFix    ActionType = "auto_fix"
	ActionReorganize ActionType = "reorganize"
	ActionRefactor   ActionType = "refactor"
	ActionManualFix  ActionType = "manual_fix"
)

// Meta describes a detector for the purposes of guidance-text generation;
// it is not the detector implementation itself.
type Meta struct {
	Name          string
	Display       string
	ActionType    ActionType
	NeedsJudgment bool
	Fixers        []string
	Tool          string // e.g. "move" for reorganize detectors driven by `desloppify move`
	Guidance      string

	// Dimension is the score-engine bucket this detector's findings roll up
	// into (internal/score). Left empty for detectors whose findings carry
	// a per-finding dimension in Detail instead (the "review" detector: each
	// finding names its own dimension, e.g. "clarity").
	Dimension string

	// ExcludedZones lists the zones (see internal/zone) this detector must
	// not run over — e.g. a dead-code detector has no business flagging
	// vendored or generated files. Evaluated through internal/rules'
	// zone_eligible negation rule rather than an inline skip check, so a
	// project's zone_overrides reshape applicability without touching
	// detector code.
	ExcludedZones []string
}

// Registry is the detector-name -> metadata table. It is built in Go only;
// no project file (such as the configured detector_overrides_path) is read
// into it.
type Registry map[string]Meta

// Get returns the metadata for a detector name, or (Meta{}, false) for an
// unregistered/external detector.
func (r Registry) Get(name string) (Meta, bool) {
	m, ok := r[name]
	return m, ok
}

// DefaultRegistry is the built-in detector table.
func DefaultRegistry() Registry {
	return Registry{
		"unused_import": {
			Name: "unused_import", Display: "unused import", ActionType: ActionAutoFix,
			NeedsJudgment: false, Fixers: []string{"unused-imports"},
			Guidance:      "remove unused imports — safe to auto-fix",
			ExcludedZones: []string{"vendor", "generated"},
			Dimension:     "Hygiene",
		},
		"structural": {
			Name: "structural", Display: "structural complexity", ActionType: ActionRefactor,
			NeedsJudgment: true, Guidance: "decompose large files into smaller units",
			ExcludedZones: []string{"vendor", "generated", "config"},
			Dimension:     "File health",
		},
		"responsibility_cohesion": {
			Name: "responsibility_cohesion", Display: "responsibility cohesion", ActionType: ActionRefactor,
			NeedsJudgment: true, Guidance: "split files doing more than one job",
			ExcludedZones: []string{"vendor", "generated", "config", "script"},
			Dimension:     "Abstraction fit",
		},
		"review": {
			Name: "review", Display: "review finding", ActionType: ActionManualFix,
			NeedsJudgment: true, Guidance: "address the reviewer's concern",
			ExcludedZones: []string{"vendor", "generated"},
		},
		"subjective_review": {
			Name: "subjective_review", Display: "subjective review", ActionType: ActionManualFix,
			NeedsJudgment: true, Guidance: "address the subjective review concern",
			ExcludedZones: []string{"vendor", "generated"},
		},
		"dict_keys": {
			Name: "dict_keys", Display: "dict key smell", ActionType: ActionRefactor,
			NeedsJudgment: true, Guidance: "fix dict/map key smells — phantom reads, stringly-typed keys",
			ExcludedZones: []string{"vendor", "generated", "test"},
			Dimension:     "Naming quality",
		},
		"smells": {
			Name: "smells", Display: "code smell", ActionType: ActionManualFix,
			NeedsJudgment: true, Guidance: "fix code smells — dead branches, empty handlers",
			ExcludedZones: []string{"vendor", "generated"},
			Dimension:     "Code smells",
		},
	}
}

// Finding is the shape a detector emits for one issue; it is converted
// into a finding.Finding by the scan command once an id and timestamps are
// assigned.
type Finding struct {
	ID         string
	File       string
	Line       int
	Tier       finding.Tier
	Confidence finding.Confidence
	Summary    string
	Detail     map[string]any
	Lang       string
}

// Detector scans a single zone of the repository and returns raw findings.
// Implementations must be safe to run concurrently with other Detectors
// over disjoint zones.
type Detector interface {
	Name() string
	Detect(ctx context.Context, root string, files []string) ([]Finding, error)
}

// UnusedImportDetector is the one illustrative reference detector shipped
// with the core: a plain line scan (not an AST walk — see DESIGN.md for why
// tree-sitter was not pulled in for this), flagging Go files whose import
// block or single-line import declaration names a package never referenced
// again in the file body.
type UnusedImportDetector struct{}

func (UnusedImportDetector) Name() string { return "unused_import" }

var importLineRe = regexp.MustCompile(`^\s*(?:(\w+)\s+)?"([^"]+)"\s*$`)

func (UnusedImportDetector) Detect(_ context.Context, root string, files []string) ([]Finding, error) {
	var out []Finding
	for _, rel := range files {
		if !strings.HasSuffix(rel, ".go") {
			continue
		}
		path := filepath.Join(root, rel)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		imports, body := scanImports(f)
		f.Close()

		for _, imp := range imports {
			alias := imp.alias
			if alias == "" {
				alias = packageNameFromPath(imp.path)
			}
			if alias == "_" || alias == "." {
				continue
			}
			if strings.Contains(body, alias+".") || strings.Contains(body, " "+alias+" ") {
				continue
			}
			out = append(out, Finding{
				ID:         "unused_import::" + rel + "::" + imp.path,
				File:       rel,
				Line:       imp.line,
				Tier:       finding.Tier1,
				Confidence: finding.ConfidenceMedium,
				Summary:    "unused import " + imp.path,
				Detail:     map[string]any{"kind": "unused_import", "import_path": imp.path},
				Lang:       "go",
			})
		}
	}
	return out, nil
}

type importSpec struct {
	alias string
	path  string
	line  int
}

func scanImports(f *os.File) ([]importSpec, string) {
	var imports []importSpec
	var body strings.Builder
	sc := bufio.NewScanner(f)
	inBlock := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case !inBlock && strings.HasPrefix(trimmed, "import "):
			if m := importLineRe.FindStringSubmatch(strings.TrimPrefix(trimmed, "import ")); m != nil {
				imports = append(imports, importSpec{alias: m[1], path: m[2], line: lineNo})
				continue
			}
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			if m := importLineRe.FindStringSubmatch(trimmed); m != nil {
				imports = append(imports, importSpec{alias: m[1], path: m[2], line: lineNo})
				continue
			}
		default:
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	return imports, body.String()
}

func packageNameFromPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}
