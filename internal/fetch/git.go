package fetch

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"repochat/internal/errors"
	"repochat/internal/retry"
	"repochat/internal/workspace"
)

// DefaultTimeout bounds a clone when none is configured.
const DefaultTimeout = 2 * time.Minute

// Git shallow-clones remote repositories with the git binary.
type Git struct {
	// AllowLocal admits file:// URLs and local repository paths. When false
	// only network URLs are cloned.
	AllowLocal bool

	binary  string
	timeout time.Duration
	policy  retry.Policy
	logger  *slog.Logger
}

// NewGit creates a git fetcher. Network failures are retried with policy;
// timeout bounds the whole fetch including retries.
func NewGit(binary string, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *Git {
	if binary == "" {
		binary = "git"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	policy.CallTimeout = 0
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Retrying clone", "attempt", attempt, "delay", delay, "error", err)
	}
	return &Git{binary: binary, timeout: timeout, policy: policy, logger: logger}
}

// Fetch runs `git clone --depth 1` into dest.
func (g *Git) Fetch(ctx context.Context, source, dest string) error {
	if strings.HasPrefix(source, "-") {
		return fetchError(errors.FetchBadSource, "invalid repository URL", nil).WithDetails("source", source)
	}
	if !g.AllowLocal && !IsNetwork(source) {
		return fetchError(errors.FetchBadSource, "repository source must be a network git URL", nil).
			WithDetails("source", source)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	_, err := retry.Do(fetchCtx, g.policy, func(ctx context.Context) (struct{}, error) {
		if err := workspace.ForceRemove(dest); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, g.clone(ctx, source, dest)
	})
	if err == nil {
		g.logger.Info("Cloned repository", "source", source, "duration", time.Since(start).Round(time.Millisecond))
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if stderrors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return fetchError(errors.FetchTimeout, "repository fetch timed out", err).
			WithDetails("source", source).
			WithDetails("timeout", g.timeout.String())
	}
	var fe *errors.Error
	if stderrors.As(err, &fe) && fe.Code == errors.IngestionFetchFailed {
		return fe
	}
	return fetchError(errors.FetchNetwork, "repository fetch failed", err).WithDetails("source", source)
}

func (g *Git) clone(ctx context.Context, source, dest string) error {
	var args []string
	if !g.AllowLocal {
		args = append(args, "-c", "protocol.file.allow=never")
	}
	args = append(args, "clone", "--depth", "1", "--quiet", "--", source, dest)
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=true")
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	g.logger.Debug("Executing git clone", "source", source, "dest", dest)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		kind := ClassifyStderr(msg)
		fe := fetchError(kind, "git clone failed", err).
			WithDetails("source", source).
			WithDetails("stderr", msg)
		if kind == errors.FetchNetwork {
			return retry.Transient(fe)
		}
		return fe
	}
	return nil
}

var (
	authMarkers = []string{
		"authentication failed",
		"could not read username",
		"could not read password",
		"permission denied",
		"terminal prompts disabled",
		"invalid username or password",
	}
	networkMarkers = []string{
		"could not resolve host",
		"connection refused",
		"connection timed out",
		"operation timed out",
		"connection reset",
		"network is unreachable",
		"early eof",
		"rpc failed",
		"the remote end hung up unexpectedly",
		"temporary failure in name resolution",
	}
)

// ClassifyStderr maps git's error output to a fetch kind. Anything not
// recognised as an auth or network failure is treated as a bad source.
func ClassifyStderr(stderr string) errors.FetchKind {
	s := strings.ToLower(stderr)
	for _, m := range authMarkers {
		if strings.Contains(s, m) {
			return errors.FetchAuth
		}
	}
	for _, m := range networkMarkers {
		if strings.Contains(s, m) {
			return errors.FetchNetwork
		}
	}
	return errors.FetchBadSource
}
