package fetch

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"repochat/internal/errors"
)

// Dir copies a local directory tree. Symlinks are not followed or copied.
type Dir struct{}

// Fetch implements Fetcher.
func (Dir) Fetch(ctx context.Context, source, dest string) error {
	src, err := filepath.Abs(source)
	if err != nil {
		return fetchError(errors.FetchBadSource, "invalid local path", err)
	}
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fetchError(errors.FetchBadSource, "failed to copy local directory", err).WithDetails("source", source)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
