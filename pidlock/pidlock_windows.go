//go:build windows

package pidlock

import "os"

// alive reports whether a process with the given PID currently exists.
// On Windows FindProcess opens a real handle, so its error is the
// liveness signal.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}
