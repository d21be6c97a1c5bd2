package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// RunMetadata records when the last clean run finished.
type RunMetadata struct {
	LastRunTimestamp string `json:"last_run_timestamp"` // RFC3339, UTC
	LastRunUnix      int64  `json:"last_run_unix"`
}

// NewRunMetadata builds the document for a run finished at t.
func NewRunMetadata(t time.Time) RunMetadata {
	return RunMetadata{
		LastRunTimestamp: t.UTC().Format(time.RFC3339),
		LastRunUnix:      t.Unix(),
	}
}

// MetadataStore persists RunMetadata. Load reports false when none exists.
type MetadataStore interface {
	Save(ctx context.Context, finished time.Time) error
	Load(ctx context.Context) (RunMetadata, bool, error)
	Delete(ctx context.Context) error
}

// FileMetadataStore keeps the metadata as indented JSON.
type FileMetadataStore struct {
	path string
}

// NewFileMetadataStore creates a FileMetadataStore at path.
func NewFileMetadataStore(path string) *FileMetadataStore {
	return &FileMetadataStore{path: path}
}

// Path returns the metadata file path.
func (s *FileMetadataStore) Path() string { return s.path }

// Save implements MetadataStore.
func (s *FileMetadataStore) Save(_ context.Context, finished time.Time) error {
	if err := writeJSONAtomic(s.path, NewRunMetadata(finished), true); err != nil {
		return fmt.Errorf("save run metadata: %w", err)
	}
	return nil
}

// Load implements MetadataStore.
func (s *FileMetadataStore) Load(_ context.Context) (RunMetadata, bool, error) {
	var md RunMetadata
	ok, err := readJSON(s.path, &md)
	if err != nil || !ok {
		return RunMetadata{}, false, err
	}
	return md, true, nil
}

// Delete implements MetadataStore. Deleting missing metadata is not an error.
func (s *FileMetadataStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete run metadata: %w", err)
	}
	return nil
}
