// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// SamplePython is a small source file that fits in a single fragment.
const SamplePython = "def main():\n    print('hello, a.py!!!')\n"

// WriteTree writes files into a fresh temp dir and returns its path. Keys
// are slash-separated paths relative to the root.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// SampleRepo writes the two-file repository used across tests: a.py in one
// fragment and a 250 character readme.txt in three.
func SampleRepo(t *testing.T) string {
	t.Helper()
	return WriteTree(t, map[string]string{
		"a.py":       SamplePython,
		"readme.txt": strings.Repeat("r", 250),
	})
}

// RequireEmptyDir fails when dir has any entries left.
func RequireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "directory was not cleaned up")
}
