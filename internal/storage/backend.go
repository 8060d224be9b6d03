// Package storage persists uploaded clock-in photos.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"attendance-backend/internal/config"
)

// Backend abstracts local filesystem vs S3-compatible photo storage.
type Backend interface {
	// Upload stores content at key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns the reference stored on the activity for key.
	URL(key string) string

	// Name returns a human-readable backend identifier ("local", "s3").
	Name() string
}

// New builds the backend selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalBackend(cfg.LocalDir, cfg.PublicPrefix)
	case "s3":
		s3cfg := cfg.S3
		return NewS3Backend(ctx, s3cfg.Endpoint, s3cfg.AccessKey, s3cfg.SecretKey, s3cfg.Bucket, s3cfg.Region, s3cfg.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// LocalBackend writes photos under a base directory served at publicPrefix.
type LocalBackend struct {
	baseDir      string
	publicPrefix string
}

func NewLocalBackend(baseDir, publicPrefix string) (*LocalBackend, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", baseDir, err)
	}
	if publicPrefix == "" {
		publicPrefix = "/uploads"
	}
	return &LocalBackend{baseDir: abs, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

func (b *LocalBackend) Name() string { return "local" }

// Dir returns the directory photos are written to.
func (b *LocalBackend) Dir() string { return b.baseDir }

// PublicPrefix returns the URL path photos are served under, without a
// trailing slash.
func (b *LocalBackend) PublicPrefix() string { return b.publicPrefix }

// resolve maps a key to a path, refusing anything outside baseDir.
func (b *LocalBackend) resolve(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	full := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(full, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory")
	}
	return full, nil
}

func (b *LocalBackend) Upload(_ context.Context, key string, reader io.Reader, _ int64) error {
	full, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *LocalBackend) Delete(_ context.Context, key string) error {
	full, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *LocalBackend) URL(key string) string {
	return b.publicPrefix + "/" + key
}
