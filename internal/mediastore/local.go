package mediastore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes uploads under a media directory served by the router at
// the public prefix (typically /media).
type LocalStore struct {
	rootDir      string
	publicPrefix string
}

// NewLocalStore constructs a filesystem-backed media store.
func NewLocalStore(rootDir string, publicPrefix string) (*LocalStore, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("mediastore.local.new: %w", ErrEmptyFilename)
	}
	if mkdirErr := os.MkdirAll(rootDir, 0o755); mkdirErr != nil {
		return nil, fmt.Errorf("mediastore.local.new: %w", mkdirErr)
	}
	if publicPrefix == "" {
		publicPrefix = "/media"
	}
	return &LocalStore{
		rootDir:      rootDir,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
	}, nil
}

// RootDir exposes the directory the router should serve.
func (store *LocalStore) RootDir() string {
	return store.rootDir
}

// Save writes the upload to disk and returns its public URL path.
func (store *LocalStore) Save(ctx context.Context, filename string, contentType string, content io.Reader) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("mediastore.local.save: %w", ErrEmptyFilename)
	}
	if content == nil {
		return "", fmt.Errorf("mediastore.local.save: %w", ErrEmptyBody)
	}
	key := objectKey(filename)
	targetPath := filepath.Join(store.rootDir, filepath.FromSlash(key))
	if mkdirErr := os.MkdirAll(filepath.Dir(targetPath), 0o755); mkdirErr != nil {
		return "", fmt.Errorf("mediastore.local.save: %w", mkdirErr)
	}
	target, createErr := os.Create(targetPath)
	if createErr != nil {
		return "", fmt.Errorf("mediastore.local.save: %w", createErr)
	}
	defer func() { _ = target.Close() }()
	if _, copyErr := io.Copy(target, content); copyErr != nil {
		_ = os.Remove(targetPath)
		return "", fmt.Errorf("mediastore.local.save: %w", copyErr)
	}
	return store.publicPrefix + "/" + key, nil
}
