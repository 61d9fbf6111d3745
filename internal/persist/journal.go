package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theRebelliousNerd/desloppify/internal/errs"
)

// TxnStatus is a two-phase-commit transaction's lifecycle state, narrowed
// to the two documents this module ever writes together: state.json and
// plan.json.
type TxnStatus string

const (
	TxnPending    TxnStatus = "pending"
	TxnPreparing  TxnStatus = "preparing"
	TxnReady      TxnStatus = "ready"
	TxnCommitting TxnStatus = "committing"
	TxnCommitted  TxnStatus = "committed"
	TxnAborted    TxnStatus = "aborted"
)

// Write describes one document to be persisted as part of a transaction.
type Write struct {
	Path  string
	Value any
}

// Journal coordinates atomic writes of state.json and plan.json so a
// process killed mid-scan never leaves one updated and the other stale.
// It stages both documents to `.tmp-*` files first, records their final
// destinations in a journal file, then renames both into place; on the
// next run, Recover replays or discards any journal left by a crash.
type Journal struct {
	mu   sync.Mutex
	dir  string // .desloppify/
	path string // .desloppify/txn.json
}

type journalRecord struct {
	ID        string    `json:"id"`
	Status    TxnStatus `json:"status"`
	Started   time.Time `json:"started"`
	Writes    []Write   `json:"writes"`
	TempFiles []string  `json:"temp_files"`
}

// NewJournal opens the transactional journal rooted at dir (typically
// `.desloppify`).
func NewJournal(dir string) *Journal {
	return &Journal{dir: dir, path: filepath.Join(dir, "txn.json")}
}

// Commit stages every write, fsyncs each temp file, records the journal,
// then renames all temp files into place and removes the journal. If the
// process dies after the journal is written but before every rename
// completes, Recover finishes the job on next startup.
func (j *Journal) Commit(writes ...Write) (err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return errs.Persistence("journal.commit", fmt.Errorf("mkdir %s: %w", j.dir, err))
	}

	rec := journalRecord{
		ID:      uuid.NewString(),
		Status:  TxnPreparing,
		Started: time.Now().UTC(),
		Writes:  writes,
	}

	tmpFiles := make([]string, 0, len(writes))
	defer func() {
		for _, f := range tmpFiles {
			os.Remove(f)
		}
	}()

	for _, w := range writes {
		data, marshalErr := marshalIndent(w.Value)
		if marshalErr != nil {
			return errs.Persistence("journal.commit", fmt.Errorf("marshal %s: %w", w.Path, marshalErr))
		}
		tmp, createErr := os.CreateTemp(filepath.Dir(w.Path), ".tmp-*")
		if createErr != nil {
			return errs.Persistence("journal.commit", fmt.Errorf("stage %s: %w", w.Path, createErr))
		}
		if _, writeErr := tmp.Write(data); writeErr != nil {
			tmp.Close()
			return errs.Persistence("journal.commit", fmt.Errorf("stage %s: %w", w.Path, writeErr))
		}
		if syncErr := tmp.Sync(); syncErr != nil {
			tmp.Close()
			return errs.Persistence("journal.commit", fmt.Errorf("sync stage %s: %w", w.Path, syncErr))
		}
		tmp.Close()
		tmpFiles = append(tmpFiles, tmp.Name())
	}

	rec.TempFiles = tmpFiles
	rec.Status = TxnReady
	if err := WriteJSONAtomic(j.path, rec); err != nil {
		return err
	}

	rec.Status = TxnCommitting
	for i, w := range writes {
		if err := os.Rename(tmpFiles[i], w.Path); err != nil {
			return errs.Persistence("journal.commit", fmt.Errorf("rename %s into place: %w", w.Path, err))
		}
	}
	tmpFiles = nil // renamed away; nothing left for the deferred cleanup

	return os.Remove(j.path)
}

// Recover checks for a journal left behind by a crashed commit and finishes
// it by renaming any still-present staged files into place, or removes a
// journal whose staged files are already gone (a crash after the final
// rename but before journal cleanup). Call once at process start, before
// the state/plan stores are loaded.
func (j *Journal) Recover() error {
	var rec journalRecord
	ok, err := ReadJSON(j.path, &rec)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for i, w := range rec.Writes {
		if i >= len(rec.TempFiles) {
			break
		}
		tmp := rec.TempFiles[i]
		if _, statErr := os.Stat(tmp); statErr == nil {
			if renameErr := os.Rename(tmp, w.Path); renameErr != nil {
				return errs.Persistence("journal.recover", fmt.Errorf("replay %s: %w", w.Path, renameErr))
			}
		}
	}
	return os.Remove(j.path)
}
