package persist

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteJSONAtomicRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "state.json")

	if err := WriteJSONAtomic(path, doc{Name: "a", Count: 1}); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}

	var got doc
	ok, err := ReadJSON(path, &got)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for an existing file")
	}
	if got != (doc{Name: "a", Count: 1}) {
		t.Errorf("got %+v", got)
	}
}

func TestWriteJSONAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := WriteJSONAtomic(path, doc{Name: "a"}); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "state.json" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestReadJSONMissingFileReturnsFalseNotError(t *testing.T) {
	dir := t.TempDir()
	var got doc
	ok, err := ReadJSON(filepath.Join(dir, "absent.json"), &got)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a missing file")
	}
}

func TestReadJSONEmptyFileReturnsFalseNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	var got doc
	ok, err := ReadJSON(path, &got)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ok {
		t.Error("expected ok=false for an empty file")
	}
}

func TestReadJSONMalformedFileReturnsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got doc
	if _, err := ReadJSON(path, &got); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}
