package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/draftdesk/scriptstore/interfaces"
	"github.com/draftdesk/scriptstore/keycodec"
)

// LocalStore implements interfaces.BlobStore on the local file system.
// Objects are written under baseDir; legacyDir, when set, is consulted as
// a read fallback for objects written before the storage layout changed.
type LocalStore struct {
	baseDir   string
	legacyDir string
	serveBase string
	log       *slog.Logger
}

// NewLocalStore creates a local file system backend rooted at baseDir.
func NewLocalStore(baseDir, legacyDir, serveBase string, log *slog.Logger) (*LocalStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local storage directory must not be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStore{
		baseDir:   baseDir,
		legacyDir: legacyDir,
		serveBase: strings.TrimSuffix(serveBase, "/"),
		log:       log,
	}, nil
}

// Upload stores data under a freshly derived key.
func (l *LocalStore) Upload(ctx context.Context, data []byte, namespace, originalName, contentType string) (interfaces.StorageKey, string, error) {
	key := keycodec.DeriveKey(namespace, originalName)
	filePath := l.primaryPath(key)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write file: %w", err)
	}

	l.log.Debug("Stored object in file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return key, l.PublicURL(key), nil
}

// Exists stats the primary directory, then the legacy directory. A stat
// failure other than "does not exist" (permission denied, I/O error) is
// inconclusive and reported as unknown, matching the durable backend's
// fail-open bias.
func (l *LocalStore) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	if !keyIsLocal(key) {
		return false, nil
	}
	_, err := os.Stat(l.primaryPath(key))
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if l.legacyDir != "" {
		_, err = os.Stat(l.legacyPath(key))
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
		}
	}
	return false, nil
}

// Delete removes the object from both directories. Absent files are not
// an error; delete is idempotent.
func (l *LocalStore) Delete(ctx context.Context, key interfaces.StorageKey) error {
	if !keyIsLocal(key) {
		return nil
	}
	if err := os.Remove(l.primaryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if l.legacyDir != "" {
		if err := os.Remove(l.legacyPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete legacy file: %w", err)
		}
	}
	return nil
}

// Fetch reads the object bytes, consulting the legacy directory when the
// primary copy is absent. Returns ErrObjectNotFound when neither exists.
func (l *LocalStore) Fetch(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	if !keyIsLocal(key) {
		return nil, interfaces.ErrObjectNotFound
	}
	data, err := os.ReadFile(l.primaryPath(key))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if l.legacyDir != "" {
		data, err = os.ReadFile(l.legacyPath(key))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read legacy file: %w", err)
		}
	}
	return nil, interfaces.ErrObjectNotFound
}

// PublicURL returns the local serving path for key, prefixed with the
// configured base URL when present.
func (l *LocalStore) PublicURL(key interfaces.StorageKey) string {
	return fmt.Sprintf("%s/files/%s", l.serveBase, escapeKey(key))
}

// Name returns a unique identifier for this storage backend.
func (l *LocalStore) Name() string {
	return fmt.Sprintf("local-%s", filepath.Base(l.baseDir))
}

// keyIsLocal reports whether key resolves to a path underneath a store
// directory. Derived keys never contain dot segments or absolute paths;
// a key that does came from outside and names no stored object.
func keyIsLocal(key interfaces.StorageKey) bool {
	return filepath.IsLocal(filepath.FromSlash(key.String()))
}

func (l *LocalStore) primaryPath(key interfaces.StorageKey) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(key.String()))
}

func (l *LocalStore) legacyPath(key interfaces.StorageKey) string {
	return filepath.Join(l.legacyDir, filepath.FromSlash(key.String()))
}
