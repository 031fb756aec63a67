//go:build !windows

package filetest_test

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subpipe/subpipe/filetest"
)

func TestIsNamedPipe(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fifo")
	require.NoError(t, syscall.Mkfifo(path, 0o600))

	assert.True(t, filetest.IsNamedPipe(path))
	assert.False(t, filetest.IsFile(path))
	assert.False(t, filetest.IsSocket(path))
}
