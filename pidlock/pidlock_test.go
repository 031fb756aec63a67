package pidlock_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/subpipe/subpipe/pidlock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID is far beyond the PID range of every supported platform, so
// no live process can ever have it.
const deadPID = 1 << 30

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.pid")
}

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	lock := pidlock.New(lockPath(t))
	require.NoError(t, lock.Acquire())

	pid, live, err := lock.Holder()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, live)

	// Acquiring a lock we already hold succeeds.
	require.NoError(t, lock.Acquire())

	require.NoError(t, lock.Release())
	pid, live, err = lock.Holder()
	require.NoError(t, err)
	assert.Zero(t, pid)
	assert.False(t, live)

	// Releasing twice is fine.
	require.NoError(t, lock.Release())
}

func TestStaleLockReplaced(t *testing.T) {
	t.Parallel()

	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(deadPID)+"\n"), 0o644))

	lock := pidlock.New(path)
	require.NoError(t, lock.Acquire())

	pid, live, err := lock.Holder()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, live)
}

func TestLiveCompetitor(t *testing.T) {
	t.Parallel()

	// The parent of the test process is alive for the duration of the
	// test, making it a convenient competitor.
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())+"\n"), 0o644))

	lock := pidlock.New(path)
	assert.ErrorIs(t, lock.Acquire(), pidlock.ErrLocked)
	assert.ErrorIs(t, lock.Release(), pidlock.ErrNotHeld)

	pid, live, err := lock.Holder()
	require.NoError(t, err)
	assert.Equal(t, os.Getppid(), pid)
	assert.True(t, live)
}

func TestMalformedLockFile(t *testing.T) {
	t.Parallel()

	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a pid\n"), 0o644))

	lock := pidlock.New(path)
	pid, live, err := lock.Holder()
	require.NoError(t, err)
	assert.Zero(t, pid)
	assert.False(t, live)

	// Junk cannot name a live owner, so the lock is acquirable.
	require.NoError(t, lock.Acquire())

	pid, _, err = lock.Holder()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestHolderMissingFile(t *testing.T) {
	t.Parallel()

	lock := pidlock.New(lockPath(t))
	pid, live, err := lock.Holder()
	require.NoError(t, err)
	assert.Zero(t, pid)
	assert.False(t, live)
}
