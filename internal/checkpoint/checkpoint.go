package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
)

// ErrCorrupt is returned when a stored document cannot be decoded.
var ErrCorrupt = errors.New("corrupt checkpoint state")

// Checkpoint is the resume point of an interrupted run.
type Checkpoint struct {
	Cursor    string `json:"cursor"`
	Timestamp string `json:"timestamp"` // RFC3339, UTC
}

// Time parses Timestamp. A malformed timestamp yields the zero time.
func (c Checkpoint) Time() time.Time {
	t, _ := time.Parse(time.RFC3339, c.Timestamp)
	return t
}

// Store persists a single checkpoint. Load reports false when none exists.
type Store interface {
	Save(ctx context.Context, cursor string) error
	Load(ctx context.Context) (Checkpoint, bool, error)
	Delete(ctx context.Context) error
}

// FileStore keeps the checkpoint in a JSON file.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string { return s.path }

// Save implements Store.
func (s *FileStore) Save(_ context.Context, cursor string) error {
	cp := Checkpoint{Cursor: cursor, Timestamp: s.now().UTC().Format(time.RFC3339)}
	if err := writeJSONAtomic(s.path, cp, false); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	metrics.CheckpointSavesTotal.Inc()
	return nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context) (Checkpoint, bool, error) {
	var cp Checkpoint
	ok, err := readJSON(s.path, &cp)
	if err != nil || !ok {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// Delete implements Store. Deleting a missing checkpoint is not an error.
func (s *FileStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// writeJSONAtomic replaces path with the encoding of v. Readers see either the
// old document or the new one, never a truncated file.
func writeJSONAtomic(path string, v any, indent bool) error {
	var data []byte
	var err error
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readJSON decodes path into v, reporting false when the file does not exist.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return true, nil
}
