// Package fetch materializes a repository source into a local directory.
package fetch

import (
	"context"
	"net/url"
	"os"
	"regexp"
	"strings"

	"repochat/internal/errors"
)

// Fetcher copies source into dest. dest must not exist yet.
type Fetcher interface {
	Fetch(ctx context.Context, source, dest string) error
}

var scpLike = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:[^/].*`)

// IsRemote reports whether source looks like a git URL rather than a local path.
func IsRemote(source string) bool {
	return IsNetwork(source) || scheme(source) == "file"
}

// IsNetwork reports whether source is a git URL served over the network.
func IsNetwork(source string) bool {
	if scpLike.MatchString(source) {
		return true
	}
	switch scheme(source) {
	case "http", "https", "git", "ssh":
		return true
	}
	return false
}

func scheme(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Auto routes remote sources to Git and existing local directories to Dir.
// It serves callers that trust local sources; file:// URLs also need Git.AllowLocal.
type Auto struct {
	Git *Git
	Dir *Dir
}

// Fetch implements Fetcher.
func (a *Auto) Fetch(ctx context.Context, source, dest string) error {
	source = strings.TrimSpace(source)
	if IsRemote(source) {
		return a.Git.Fetch(ctx, source, dest)
	}
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return a.Dir.Fetch(ctx, source, dest)
	}
	return fetchError(errors.FetchBadSource, "repository source is neither a git URL nor a local directory", nil).
		WithDetails("source", source)
}

func fetchError(kind errors.FetchKind, msg string, cause error) *errors.Error {
	return errors.Wrap(errors.IngestionFetchFailed, msg, cause).WithDetails("kind", kind)
}
