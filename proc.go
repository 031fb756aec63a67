package subpipe

import (
	"os/exec"

	"go.uber.org/zap"
)

// proc is the live handle for one spawned stage. Its reaper goroutine
// is the only caller of `cmd.Wait`; every other party observes the
// stage through `done`, which is closed once the exit status has been
// collected.
type proc struct {
	stage int
	name  string
	cmd   *exec.Cmd
	done  chan struct{}
	log   *zap.Logger
}

func newProc(stage int, name string, cmd *exec.Cmd, log *zap.Logger) *proc {
	return &proc{
		stage: stage,
		name:  name,
		cmd:   cmd,
		done:  make(chan struct{}),
		log:   log,
	}
}

// reap waits for the child and publishes its exit status. It runs on
// its own goroutine, started immediately after a successful spawn, and
// exits as soon as the child does. Since every stream handed to the
// child is a real file, `cmd.Wait` has no copier goroutines to join;
// it only collects the exit status.
func (pr *proc) reap() {
	err := pr.cmd.Wait()
	close(pr.done)
	if pr.cmd.ProcessState == nil {
		// Wait itself failed, so there is no exit status; exitCode
		// reports -1 for this stage.
		pr.log.Debug("stage wait failed",
			zap.Int("stage", pr.stage),
			zap.String("cmd", pr.name),
			zap.Error(err))
		return
	}
	code, _ := pr.exitCode()
	pr.log.Debug("stage exited",
		zap.Int("stage", pr.stage),
		zap.String("cmd", pr.name),
		zap.Int("code", code))
}

// exited reports whether the stage has exited. Never blocks.
func (pr *proc) exited() bool {
	select {
	case <-pr.done:
		return true
	default:
		return false
	}
}

// exitCode returns the stage's exit code once it has exited. A stage
// killed by a signal reports -1, following `os.ProcessState`.
func (pr *proc) exitCode() (int, bool) {
	if !pr.exited() {
		return 0, false
	}
	if pr.cmd.ProcessState == nil {
		// Wait itself failed; there is no status to report.
		return -1, true
	}
	return pr.cmd.ProcessState.ExitCode(), true
}
