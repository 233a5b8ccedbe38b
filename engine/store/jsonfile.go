package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

// JSONStore keeps the collection as a single JSON document on disk, the
// same document the public site serves. Writes go through a temp file in
// the same directory followed by a rename, so a crash mid-save leaves the
// previous document intact.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store backed by the document at path. The parent
// directory is created if missing.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &JSONStore{path: path}, nil
}

func (s *JSONStore) Load(_ context.Context) (listing.Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return listing.Collection{}, ErrNotFound
		}
		return listing.Collection{}, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	var c listing.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return listing.Collection{}, fmt.Errorf("store: decode %s: %w", s.path, err)
	}
	return c, nil
}

func (s *JSONStore) Save(_ context.Context, c listing.Collection) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	slog.Debug("collection saved", "path", s.path, "listings", c.Len(), "bytes", len(data))
	return nil
}
