// Package imagestore materializes remote profile images into durable,
// content-addressed object storage and hands out stable public URLs.
package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore abstracts durable object storage for cached images.
// PutIfAbsent must be idempotent per key: when the object already exists
// the call succeeds without a second write.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// LocalStore implements BlobStore using the local filesystem.
// Useful for development and testing.
type LocalStore struct {
	BaseDir    string
	PublicBase string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
// Public URLs are formed by joining publicBase with the object key.
func NewLocalStore(baseDir, publicBase string) *LocalStore {
	return &LocalStore{BaseDir: baseDir, PublicBase: strings.TrimRight(publicBase, "/")}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(key))
}

// Exists reports whether an object is already stored under key.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// PutIfAbsent stores data under key unless an object is already present.
// The write goes to a temp file first and is linked into place, so a
// concurrent loser never observes a partial object.
func (s *LocalStore) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", key, err)
	}

	if err := os.Link(tmpName, target); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("link object %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the externally served URL for key.
func (s *LocalStore) PublicURL(key string) string {
	if s.PublicBase == "" {
		return s.path(key)
	}
	return s.PublicBase + "/" + key
}
