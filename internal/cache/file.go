package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps one JSON file per key under dir. Expiry is judged by
// file modification time.
type FileStore struct {
	dir string
	ttl time.Duration
}

func NewFileStore(dir string, ttl time.Duration) *FileStore {
	return &FileStore{dir: dir, ttl: ttl}
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dir, key+".json")
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	filePath := fs.path(key)
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, false, nil
	}
	if fs.ttl > 0 && time.Since(info.ModTime()) > fs.ttl {
		os.Remove(filePath) // Remove expired cache
		return nil, false, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set ignores ttl; FileStore applies its own TTL on read.
func (fs *FileStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return err
	}
	tmp := fs.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path(key))
}
