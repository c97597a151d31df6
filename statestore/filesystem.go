package statestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var _ Store = (*FilesystemStore)(nil)

// FilesystemStore persists documents as files under a root directory. The
// prefix becomes a directory component, so distinct prefixes map to
// disjoint subtrees.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the store rooted at root/prefix, creating the
// directory if needed.
func NewFilesystemStore(root, prefix string) (*FilesystemStore, error) {
	dir := filepath.Join(root, filepath.FromSlash(prefix))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return &FilesystemStore{root: dir}, nil
}

// path maps a document key to its file. Keys may contain slashes; each
// segment becomes a directory.
func (s *FilesystemStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FilesystemStore) Put(_ context.Context, key string, value []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", p, err)
	}
	if err := os.WriteFile(p, value, 0o644); err != nil {
		return fmt.Errorf("write state document %s: %w", p, err)
	}
	return nil
}

func (s *FilesystemStore) Get(_ context.Context, key string) ([]byte, error) {
	value, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read state document %s: %w", s.path(key), err)
	}
	return value, nil
}

func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete state document %s: %w", s.path(key), err)
	}
	return nil
}

func (s *FilesystemStore) Close(_ context.Context) error { return nil }
