package partition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore keeps objects as files below a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates a file system object store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// Put writes data to a temporary file and renames it into place.
func (s *FSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create partition directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".part-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FSStore) Describe() string {
	return s.root
}
