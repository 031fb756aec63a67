package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cli/safeexec"
	"github.com/stretchr/testify/require"
)

// RequireExecutables skips the calling test unless every named
// executable resolves on PATH. Tests that drive real system commands
// use this instead of hard-coding platform assumptions.
func RequireExecutables(t *testing.T, names ...string) {
	t.Helper()

	for _, name := range names {
		if _, err := safeexec.LookPath(name); err != nil {
			t.Skipf("test skipped: %q not found on PATH", name)
		}
	}
}

// WriteFile creates a file with the given contents under dir and
// returns its path.
func WriteFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

// ReadFile returns the contents of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(contents)
}
