package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend stores raw upload bytes and returns a publicly reachable URL.
// The rest of the system treats uploads as "store bytes, get back a URL".
type Backend interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// LocalBackend persists uploads on disk under a base directory.
type LocalBackend struct {
	baseDir string
	baseURL string
}

// NewLocalBackend ensures the base directory exists and returns a handle.
func NewLocalBackend(baseDir, baseURL string) (*LocalBackend, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalBackend{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes the given bytes under the base dir and returns the public URL.
func (b *LocalBackend) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := b.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return b.baseURL + "/" + key, nil
}

// Delete removes a stored file if present.
func (b *LocalBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

func (b *LocalBackend) resolve(key string) string {
	cleaned := filepath.Clean("/" + key)
	return filepath.Join(b.baseDir, cleaned)
}
