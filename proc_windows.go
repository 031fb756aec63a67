//go:build windows

package subpipe

import (
	"errors"
	"os"
	"os/exec"
)

// runInOwnProcessGroup is not supported on Windows.
func runInOwnProcessGroup(cmd *exec.Cmd) {}

// applyCredential is not supported on Windows; User/Group settings are
// ignored.
func applyCredential(cmd *exec.Cmd, c *Command) {}

// signal delivers a control action to the stage. Windows has no POSIX
// signals, so anything other than a no-op degrades to killing the
// process outright.
func (pr *proc) signal(sig os.Signal) error {
	if pr.exited() {
		return nil
	}
	err := pr.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// terminate degrades to kill on Windows.
func (pr *proc) terminate() error { return pr.signal(os.Kill) }

// kill ends the stage without appeal.
func (pr *proc) kill() error { return pr.signal(os.Kill) }
