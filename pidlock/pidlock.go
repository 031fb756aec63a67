// Package pidlock implements a PID-file lock that limits a program to
// a single running instance, or guards a shared resource between
// cooperating processes.
//
// The lock is a plain file holding the owner's process ID. A lock file
// whose PID no longer names a live process is stale and is silently
// replaced. The file should live on a tmpfs filesystem so that a
// reboot clears it.
//
// The protocol is advisory and not fully race-free: two processes
// racing between the check and the write can both believe they won.
// The re-read after writing narrows that window but cannot close it
// with plain files.
package pidlock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// ErrLocked is returned by Acquire when another live process holds the
// lock.
var ErrLocked = errors.New("lock held by another process")

// ErrNotHeld is returned by Release when the lock file names a
// different process.
var ErrNotHeld = errors.New("lock not held by this process")

var errMalformed = errors.New("malformed lock file")

// A Lock is a PID-file lock. The zero value is not usable; call New.
type Lock struct {
	path string
}

// New returns a Lock backed by the file at path. Nothing is touched
// until Acquire.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock by writing the current process ID to the
// lock file. Acquiring a lock this process already holds succeeds. A
// stale lock file left behind by a dead process is replaced. Returns
// ErrLocked when a live competitor holds the lock.
func (l *Lock) Acquire() error {
	if err := l.check(); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing lock file: %w", err)
	}

	// Re-read to catch a writer that raced us between the check and
	// the write.
	owner, err := l.read()
	if err != nil {
		return fmt.Errorf("verifying lock file: %w", err)
	}
	if owner != pid {
		return ErrLocked
	}
	return nil
}

// Release removes the lock file if this process holds it. Releasing a
// lock that no longer exists is not an error.
func (l *Lock) Release() error {
	owner, err := l.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case errors.Is(err, errMalformed):
		return ErrNotHeld
	case err != nil:
		return err
	case owner != os.Getpid():
		return ErrNotHeld
	}
	return os.Remove(l.path)
}

// Holder reports the lock's current owner and whether that process is
// still alive. A missing or malformed lock file yields (0, false, nil).
func (l *Lock) Holder() (int, bool, error) {
	owner, err := l.read()
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errMalformed) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return owner, alive(owner), nil
}

// check decides whether Acquire may proceed. Acquire overwrites the
// lock file, so stale and malformed files need no explicit cleanup
// here.
func (l *Lock) check() error {
	owner, err := l.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case errors.Is(err, errMalformed):
		// Junk in the lock file cannot name a live owner.
		return nil
	case err != nil:
		return err
	case owner == os.Getpid():
		return nil
	case alive(owner):
		return ErrLocked
	}
	// The owner died without cleaning up.
	return nil
}

// read parses the PID out of the lock file.
func (l *Lock) read() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errMalformed
	}
	return pid, nil
}
