package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/backtalk/backtalk/model"
)

// Snapshot is the durable session state: the last known server record
// (id, respondent, answers) and the cursor. One snapshot belongs to
// exactly one survey hash.
type Snapshot struct {
	Record model.ResponseRecord
	Cursor int
}

// Store persists the session snapshot across page loads. A Store is
// bound to a single survey hash at construction; snapshots are never
// shared across surveys.
type Store interface {
	Load() (snap Snapshot, ok bool, err error)
	Save(snap Snapshot) error
	Clear() error
}

// MemoryStore keeps the snapshot in process memory. Used in tests and
// in single-run tools that don't need resume.
type MemoryStore struct {
	snap *Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Snapshot, bool, error) {
	if m.snap == nil {
		return Snapshot{}, false, nil
	}
	return *m.snap, true, nil
}

func (m *MemoryStore) Save(snap Snapshot) error {
	m.snap = &snap
	return nil
}

func (m *MemoryStore) Clear() error {
	m.snap = nil
	return nil
}

// fileState mirrors the two-key browser storage layout: one key for
// the serialized record, one for the string-encoded cursor.
type fileState struct {
	Resp string `json:"resp,omitempty"`
	Cur  string `json:"cur,omitempty"`
}

// FileStore persists the snapshot as a JSON file per survey hash.
type FileStore struct {
	path string
}

func NewFileStore(dir, surveyHash string) *FileStore {
	return &FileStore{path: filepath.Join(dir, surveyHash+".json")}
}

func (f *FileStore) Load() (Snapshot, bool, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, errors.Wrap(err, "read session file")
	}

	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		return Snapshot{}, false, errors.Wrap(err, "parse session file")
	}
	if state.Resp == "" {
		return Snapshot{}, false, nil
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(state.Resp), &snap.Record); err != nil {
		return Snapshot{}, false, errors.Wrap(err, "parse session record")
	}
	if state.Cur != "" {
		snap.Cursor, err = strconv.Atoi(state.Cur)
		if err != nil {
			return Snapshot{}, false, errors.Wrap(err, "parse session cursor")
		}
	}
	return snap, true, nil
}

func (f *FileStore) Save(snap Snapshot) error {
	record, err := json.Marshal(snap.Record)
	if err != nil {
		return errors.Wrap(err, "serialize session record")
	}
	raw, err := json.Marshal(fileState{
		Resp: string(record),
		Cur:  strconv.Itoa(snap.Cursor),
	})
	if err != nil {
		return errors.Wrap(err, "serialize session file")
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	return errors.Wrap(os.WriteFile(f.path, raw, 0o644), "write session file")
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.Wrap(err, "clear session file")
}
