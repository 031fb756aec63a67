//go:build !windows

package subpipe

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// runInOwnProcessGroup arranges for the child to run in its own
// process group, so that signals reach the stage and anything the
// stage itself forks.
func runInOwnProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// applyCredential installs the stage's uid/gid settings, if any.
func applyCredential(cmd *exec.Cmd, c *Command) {
	if c.uid == nil && c.gid == nil {
		return
	}
	cred := &syscall.Credential{
		Uid: uint32(os.Getuid()),
		Gid: uint32(os.Getgid()),
	}
	if c.uid != nil {
		cred.Uid = uint32(*c.uid)
	}
	if c.gid != nil {
		cred.Gid = uint32(*c.gid)
	}
	for _, g := range c.groups {
		cred.Groups = append(cred.Groups, uint32(g))
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Credential = cred
}

// signal delivers `sig` to the stage's process group. Signalling a
// group that died an instant ago is an expected race, not an error;
// ESRCH from the kernel means exactly that and is swallowed. The
// check-then-signal here is inherently racy, the same way any signal
// delivery by pid is.
func (pr *proc) signal(sig os.Signal) error {
	if pr.exited() {
		return nil
	}
	s, ok := sig.(syscall.Signal)
	if !ok {
		// Not a POSIX signal; let the runtime deal with it, process
		// (not group) scope.
		err := pr.cmd.Process.Signal(sig)
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	}
	// We spawned the stage with PGID == PID.
	err := syscall.Kill(-pr.cmd.Process.Pid, s)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// terminate asks the stage to exit gently.
func (pr *proc) terminate() error { return pr.signal(syscall.SIGTERM) }

// kill ends the stage without appeal.
func (pr *proc) kill() error { return pr.signal(syscall.SIGKILL) }
