// Package workspace manages scoped temporary directories that must be removed
// even when the tree they hold contains read-only entries.
package workspace

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"repochat/internal/errors"
)

// Dir is a temporary directory owned by one ingestion.
type Dir struct {
	Path   string
	logger *slog.Logger
	closed bool
}

// Acquire creates a fresh directory under root (os.TempDir when empty).
func Acquire(root, prefix string, logger *slog.Logger) (*Dir, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, errors.Wrap(errors.InternalError, "failed to create work directory", err)
		}
	}
	path, err := os.MkdirTemp(root, prefix)
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "failed to create temporary directory", err)
	}
	logger.Debug("Acquired workspace", "path", path)
	return &Dir{Path: path, logger: logger}, nil
}

// Release removes the directory tree. Calling it more than once is a no-op.
func (d *Dir) Release() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	if err := ForceRemove(d.Path); err != nil {
		return err
	}
	d.logger.Debug("Released workspace", "path", d.Path)
	return nil
}

// ReleaseLogged releases the directory and logs, rather than returns, a failure.
func (d *Dir) ReleaseLogged() {
	if d == nil {
		return
	}
	if err := d.Release(); err != nil {
		d.logger.Warn("Failed to remove workspace", "path", d.Path, "error", err)
	}
}

// ForceRemove deletes path. If the first attempt fails, owner write permission is
// restored on every entry and removal is retried once.
func ForceRemove(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}

	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable directory: make it traversable and keep going.
			_ = os.Chmod(p, 0o755)
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		mode := os.FileMode(0o644)
		if d.IsDir() {
			mode = 0o755
		}
		_ = os.Chmod(p, mode)
		return nil
	})
	_ = os.Chmod(path, 0o755)

	if retryErr := os.RemoveAll(path); retryErr != nil {
		return errors.Wrap(errors.CleanupFailed, "failed to remove temporary directory", retryErr).
			WithDetails("path", path)
	}
	return nil
}
