package fetch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repochat/internal/errors"
	"repochat/internal/retry"
	"repochat/internal/slogutil"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"https://github.com/owner/repo.git", true},
		{"http://example.com/repo", true},
		{"git@github.com:owner/repo.git", true},
		{"ssh://git@host/repo", true},
		{"file:///srv/repo", true},
		{"./local/dir", false},
		{"/abs/path", false},
		{"C:/Users/me/repo", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			require.Equal(t, tt.want, IsRemote(tt.source))
		})
	}
}

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		stderr string
		want   errors.FetchKind
	}{
		{"remote: Repository not found.\nfatal: repository 'https://x/y' not found", errors.FetchBadSource},
		{"fatal: Authentication failed for 'https://x/y'", errors.FetchAuth},
		{"fatal: could not read Username for 'https://github.com': terminal prompts disabled", errors.FetchAuth},
		{"fatal: unable to access 'https://x/': Could not resolve host: x", errors.FetchNetwork},
		{"error: RPC failed; curl 56 GnuTLS recv error", errors.FetchNetwork},
		{"fatal: 'nope' does not appear to be a git repository", errors.FetchBadSource},
		{"", errors.FetchBadSource},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ClassifyStderr(tt.stderr), tt.stderr)
	}
}

// fakeGit writes a shell script standing in for the git binary.
func fakeGit(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "git")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestGit_FetchSuccess(t *testing.T) {
	bin := fakeGit(t, `for a; do last=$a; done
mkdir -p "$last" && printf 'print(1)\n' > "$last/a.py"`)
	dest := filepath.Join(t.TempDir(), "repo")

	g := NewGit(bin, time.Second, fastPolicy(), slogutil.NewDiscardLogger())
	require.NoError(t, g.Fetch(context.Background(), "https://example.com/repo.git", dest))
	require.FileExists(t, filepath.Join(dest, "a.py"))
}

func TestGit_NetworkErrorsAreRetried(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	bin := fakeGit(t, `echo x >> "`+counter+`"
echo "fatal: unable to access 'https://example.invalid/': Could not resolve host: example.invalid" >&2
exit 128`)
	dest := filepath.Join(t.TempDir(), "repo")

	g := NewGit(bin, 5*time.Second, fastPolicy(), slogutil.NewDiscardLogger())
	err := g.Fetch(context.Background(), "https://example.invalid/repo.git", dest)
	require.Error(t, err)
	require.Equal(t, errors.IngestionFetchFailed, errors.CodeOf(err))
	require.Equal(t, errors.FetchNetwork, errors.FetchKindOf(err))

	data, readErr := os.ReadFile(counter)
	require.NoError(t, readErr)
	require.Equal(t, 3, strings.Count(string(data), "x"))
}

func TestGit_BadSourceIsNotRetried(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	bin := fakeGit(t, `echo x >> "`+counter+`"
echo "remote: Repository not found." >&2
exit 128`)

	g := NewGit(bin, 5*time.Second, fastPolicy(), slogutil.NewDiscardLogger())
	err := g.Fetch(context.Background(), "https://example.com/missing.git", filepath.Join(t.TempDir(), "repo"))
	require.Equal(t, errors.FetchBadSource, errors.FetchKindOf(err))

	data, _ := os.ReadFile(counter)
	require.Equal(t, 1, strings.Count(string(data), "x"))
}

func TestGit_Timeout(t *testing.T) {
	bin := fakeGit(t, `exec sleep 5`)
	g := NewGit(bin, 100*time.Millisecond, fastPolicy(), slogutil.NewDiscardLogger())

	start := time.Now()
	err := g.Fetch(context.Background(), "https://example.com/slow.git", filepath.Join(t.TempDir(), "repo"))
	require.Equal(t, errors.FetchTimeout, errors.FetchKindOf(err))
	require.Less(t, time.Since(start), 4*time.Second)
}

func TestGit_RejectsOptionLikeSource(t *testing.T) {
	g := NewGit("git", time.Second, fastPolicy(), slogutil.NewDiscardLogger())
	err := g.Fetch(context.Background(), "--upload-pack=touch /tmp/x", t.TempDir())
	require.Equal(t, errors.FetchBadSource, errors.FetchKindOf(err))
}

func TestDir_Fetch(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.py"), []byte("print(1)\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pkg", "b.go"), []byte("package pkg\n"), 0o444))

	dest := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, Dir{}.Fetch(context.Background(), src, dest))

	got, err := os.ReadFile(filepath.Join(dest, "pkg", "b.go"))
	require.NoError(t, err)
	require.Equal(t, "package pkg\n", string(got))
	require.FileExists(t, filepath.Join(dest, "a.py"))
}

func TestAuto_RejectsUnknownSource(t *testing.T) {
	a := &Auto{Git: NewGit("git", time.Second, fastPolicy(), slogutil.NewDiscardLogger()), Dir: &Dir{}}
	err := a.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.Equal(t, errors.IngestionFetchFailed, errors.CodeOf(err))
	require.Equal(t, errors.FetchBadSource, errors.FetchKindOf(err))
}

func TestIsNetwork(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"https://github.com/owner/repo.git", true},
		{"HTTPS://github.com/owner/repo.git", true},
		{"git://example.com/repo", true},
		{"git@github.com:owner/repo.git", true},
		{"ssh://git@host/repo", true},
		{"file:///srv/repo", false},
		{"/srv/repo", false},
		{"./repo", false},
		{"ext::sh -c touch% /tmp/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			require.Equal(t, tt.want, IsNetwork(tt.source))
		})
	}
}

func TestGit_RejectsLocalSourcesByDefault(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	bin := fakeGit(t, `touch "`+marker+`"`)
	g := NewGit(bin, time.Second, fastPolicy(), slogutil.NewDiscardLogger())

	for _, source := range []string{t.TempDir(), "file://" + t.TempDir(), "./repo"} {
		err := g.Fetch(context.Background(), source, filepath.Join(t.TempDir(), "repo"))
		require.Equal(t, errors.FetchBadSource, errors.FetchKindOf(err), source)
	}
	require.NoFileExists(t, marker)
}

func TestGit_DisablesFileProtocol(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	bin := fakeGit(t, `echo "$@" > "`+argsFile+`"
for a; do last=$a; done
mkdir -p "$last"`)

	g := NewGit(bin, time.Second, fastPolicy(), slogutil.NewDiscardLogger())
	require.NoError(t, g.Fetch(context.Background(), "https://example.com/repo.git", filepath.Join(t.TempDir(), "a")))
	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(args), "-c protocol.file.allow=never clone "), string(args))

	g.AllowLocal = true
	require.NoError(t, g.Fetch(context.Background(), "file:///srv/repo", filepath.Join(t.TempDir(), "b")))
	args, err = os.ReadFile(argsFile)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(args), "clone "), string(args))
}
