// Package rules is a small, fixed-schema Mangle (Datalog) wrapper, scoped
// to the one reasoning job desloppify needs a declarative ruleset for:
// deriving which zones a detector may run over. The schema also declares
// grouping-family rules for finding facts, but no caller outside the tests
// asserts finding facts; auto-cluster grouping is done by cluster.groupingKey.
// The schema is fixed at construction, there is no persistence hydration,
// and there is no free-text query parser — the only way in is AddFact and
// the only way out is GetFacts (and the ZoneEligibility helper built on
// it).
package rules

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Schema declares finding-shaped facts and zone facts, and the rules that
// derive a grouping family and zone eligibility from them. Only
// ZoneEligibility asserts facts in production code (zone facts); the cluster
// engine asserts none.
// Every clause here has a direct counterpart in cluster.groupingKey (kept
// alongside as a plain-Go implementation); see DESIGN.md for why both
// exist.
const Schema = `
Decl finding_review(Id, Dimension) descr [mode("-", "-")].
Decl finding_judgment_file(Id, Detector, File) descr [mode("-", "-", "-")].
Decl finding_judgment_typed(Id, Detector, Subtype) descr [mode("-", "-", "-")].
Decl finding_autofix(Id, Detector) descr [mode("-", "-")].
Decl finding_plain(Id, Detector) descr [mode("-", "-")].

Decl zone_detector(Zone, Detector) descr [mode("-", "-")].
Decl zone_excluded(Zone, Detector) descr [mode("-", "-")].

Decl group_review(Id, Dimension).
Decl group_file(Id, Detector, File).
Decl group_typed(Id, Detector, Subtype).
Decl group_auto(Id, Detector).
Decl group_plain(Id, Detector).
Decl zone_eligible(Zone, Detector).

group_review(Id, Dimension) :- finding_review(Id, Dimension).
group_file(Id, Detector, File) :- finding_judgment_file(Id, Detector, File).
group_typed(Id, Detector, Subtype) :- finding_judgment_typed(Id, Detector, Subtype).
group_auto(Id, Detector) :- finding_autofix(Id, Detector).
group_plain(Id, Detector) :- finding_plain(Id, Detector).
zone_eligible(Zone, Detector) :- zone_detector(Zone, Detector), !zone_excluded(Zone, Detector).
`

// Engine is a mutex-protected, in-memory Mangle fact store evaluated
// eagerly after every insert; nothing here ever turns that off, so there
// is no ToggleAutoEval/RecomputeRules pair.
type Engine struct {
	mu             sync.Mutex
	store          factstore.FactStore
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
}

// NewEngine parses and analyzes Schema once and returns a ready engine.
func NewEngine() (*Engine, error) {
	unit, err := parse.Unit(strings.NewReader(Schema))
	if err != nil {
		return nil, fmt.Errorf("rules: parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Clauses: unit.Clauses, Decls: unit.Decls}, nil)
	if err != nil {
		return nil, fmt.Errorf("rules: analyze schema: %w", err)
	}

	predicateIndex := make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		predicateIndex[sym.Symbol] = sym
	}

	return &Engine{
		store:          factstore.NewSimpleInMemoryStore(),
		programInfo:    programInfo,
		predicateIndex: predicateIndex,
	}, nil
}

// AddFact asserts one fact and re-evaluates the ruleset.
func (e *Engine) AddFact(predicate string, args ...any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	atom, err := e.factToAtom(predicate, args)
	if err != nil {
		return err
	}
	e.store.Add(atom)
	if _, err := mengine.EvalProgramWithStats(e.programInfo, e.store); err != nil {
		return fmt.Errorf("rules: evaluate: %w", err)
	}
	return nil
}

// GetFacts returns every fact (asserted or derived) currently held for a
// predicate, each as the raw argument tuple in declaration order.
func (e *Engine) GetFacts(predicate string) ([][]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.predicateIndex[predicate]
	if !ok {
		return nil, fmt.Errorf("rules: predicate %s is not declared", predicate)
	}

	var out [][]any
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		row := make([]any, len(atom.Args))
		for i, arg := range atom.Args {
			row[i] = baseTermToValue(arg)
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// Clear drops every asserted and derived fact, leaving the schema intact.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = factstore.NewSimpleInMemoryStore()
}

func (e *Engine) factToAtom(predicate string, args []any) (ast.Atom, error) {
	sym, ok := e.predicateIndex[predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("rules: predicate %s is not declared", predicate)
	}
	if len(args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("rules: predicate %s expects %d args, got %d", predicate, sym.Arity, len(args))
	}

	terms := make([]ast.BaseTerm, len(args))
	for i, raw := range args {
		term, err := valueToTerm(raw)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("rules: predicate %s arg %d: %w", predicate, i, err)
		}
		terms[i] = term
	}
	return ast.Atom{Predicate: sym, Args: terms}, nil
}

// valueToTerm converts a Go value to a Mangle term: explicit /name syntax
// always wins, otherwise it becomes a String constant. There is no
// declared-bound-type lookup, since every predicate in Schema uses plain
// `descr [mode(...)]` declarations with no bound types to read.
func valueToTerm(value any) (ast.BaseTerm, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("unsupported argument type %T", value)
	}
	if strings.HasPrefix(s, "/") {
		return ast.Name(s)
	}
	return ast.String(s), nil
}

func baseTermToValue(term ast.BaseTerm) any {
	c, ok := term.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", term)
	}
	switch c.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return strings.TrimPrefix(c.Symbol, "/")
	case ast.NumberType:
		return c.NumValue
	case ast.Float64Type:
		return math.Float64frombits(uint64(c.NumValue))
	default:
		return c.String()
	}
}
