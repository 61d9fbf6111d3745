// Package persist provides atomic on-disk JSON persistence for
// desloppify's state, plan, and query documents, plus a two-file
// transactional journal so a crash between writing state.json and
// plan.json never leaves the pair internally inconsistent.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
)

// WriteJSONAtomic marshals v and writes it to path via a temp file in the
// same directory followed by os.Rename, so readers never observe a
// partially written file.
func WriteJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Persistence("persist.write", fmt.Errorf("mkdir %s: %w", dir, err))
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Persistence("persist.write", fmt.Errorf("marshal %s: %w", path, err))
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.Persistence("persist.write", fmt.Errorf("create temp for %s: %w", path, err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once rename succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Persistence("persist.write", fmt.Errorf("write temp for %s: %w", path, err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.Persistence("persist.write", fmt.Errorf("sync temp for %s: %w", path, err))
	}
	if err := tmp.Close(); err != nil {
		return errs.Persistence("persist.write", fmt.Errorf("close temp for %s: %w", path, err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errs.Persistence("persist.write", fmt.Errorf("rename into %s: %w", path, err))
	}
	return nil
}

func marshalIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ReadJSON unmarshals path into v. A missing file is reported through ok=false
// rather than an error, since "no state.json yet" is an expected first-run
// state, not a persistence failure.
func ReadJSON(path string, v any) (ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errs.Persistence("persist.read", fmt.Errorf("read %s: %w", path, err))
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errs.Persistence("persist.read", fmt.Errorf("unmarshal %s: %w", path, err))
	}
	return true, nil
}
