// Package query writes the canonical query.json payload the scan and
// resolve commands leave behind for external collaborators (the
// narrative writer, CI gates, IDE integrations) to read without having to
// parse stdout. One document per command invocation, written atomically,
// never partially visible.
package query

import (
	"encoding/json"
	"path/filepath"

	"github.com/theRebelliousNerd/desloppify/internal/persist"
	"github.com/theRebelliousNerd/desloppify/internal/score"
)

// Path returns the query.json path rooted at projectDir.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".desloppify", "query.json")
}

// Document is the canonical query.json payload shape: command, the four
// current scores, optional previous-score fields, an optional narrative
// and config, and whatever command-specific fields the caller merges in
// via Extra. The four current scores and Command are always present;
// everything else is optional depending on which command produced the
// document.
type Document struct {
	Command string `json:"command"`

	OverallScore        float64 `json:"overall_score"`
	ObjectiveScore      float64 `json:"objective_score"`
	StrictScore         float64 `json:"strict_score"`
	VerifiedStrictScore float64 `json:"verified_strict_score"`

	PrevOverallScore        *float64 `json:"prev_overall_score,omitempty"`
	PrevObjectiveScore      *float64 `json:"prev_objective_score,omitempty"`
	PrevStrictScore         *float64 `json:"prev_strict_score,omitempty"`
	PrevVerifiedStrictScore *float64 `json:"prev_verified_strict_score,omitempty"`

	Narrative string         `json:"narrative,omitempty"`
	Config    map[string]any `json:"config,omitempty"`

	// Error is set instead of the fields above when the command failed to
	// assemble a full payload; the command still writes what it has and
	// surfaces this same message to stderr.
	Error string `json:"error,omitempty"`

	// Extra carries command-specific fields (items, queue, resolved,
	// attestation, ...) merged into the top level of the written document.
	Extra map[string]any `json:"-"`
}

// New builds a Document's fixed fields from a current score snapshot and an
// optional previous one (nil when the command has no meaningful "before").
func New(command string, current score.Snapshot, previous *score.Snapshot) Document {
	d := Document{
		Command:             command,
		OverallScore:        current.Overall,
		ObjectiveScore:      current.Objective,
		StrictScore:         current.Strict,
		VerifiedStrictScore: current.Verified,
	}
	if previous != nil {
		d.PrevOverallScore = &previous.Overall
		d.PrevObjectiveScore = &previous.Objective
		d.PrevStrictScore = &previous.Strict
		d.PrevVerifiedStrictScore = &previous.Verified
	}
	return d
}

// WithExtra returns a copy of d with one command-specific field set (e.g.
// "items", "queue", "resolved", "attestation").
func (d Document) WithExtra(key string, value any) Document {
	extra := make(map[string]any, len(d.Extra)+1)
	for k, v := range d.Extra {
		extra[k] = v
	}
	extra[key] = value
	d.Extra = extra
	return d
}

// MarshalJSON flattens Extra into the same object as the fixed fields, so
// the file on disk is a single flat payload rather than nesting
// command-specific data under its own key.
func (d Document) MarshalJSON() ([]byte, error) {
	type fixed Document
	base, err := json.Marshal(fixed(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// Write persists doc to projectDir's query.json atomically. A write
// failure is never fatal to the calling command: the caller should fall
// back to ErrorDocument and still attempt that write, surfacing err to
// stderr either way.
func Write(projectDir string, doc Document) error {
	return persist.WriteJSONAtomic(Path(projectDir), doc)
}

// ErrorDocument builds the degraded payload written on failure: an error
// field is recorded in the payload and surfaced to stderr. The payload
// carries only the command name and the error; no score fields are set.
func ErrorDocument(command string, cause error) Document {
	return Document{Command: command, Error: cause.Error()}
}
