//go:build !windows

package pidlock

import (
	"errors"
	"os"
	"syscall"
)

// alive reports whether a process with the given PID currently exists.
// Signal 0 performs the existence and permission checks without
// delivering anything; EPERM still means the process exists.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
