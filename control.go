package subpipe

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"
)

// IsRunning reports whether at least one stage has not yet exited.
// Never blocks.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeCompleteLocked()
	if p.state != StateLaunched && p.state != StateCompleted {
		return false
	}
	for _, pr := range p.procs {
		if !pr.exited() {
			return true
		}
	}
	return false
}

// Poll returns one entry per stage: the exit code once the stage has
// exited, nil while it runs or before it has been spawned. Never
// blocks.
func (p *Pipeline) Poll() []*int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeCompleteLocked()

	codes := make([]*int, len(p.stages))
	for i, pr := range p.procs {
		if code, ok := pr.exitCode(); ok {
			code := code
			codes[i] = &code
		}
	}
	return codes
}

// Wait blocks until every stage has exited or ctx ends, whichever is
// first. On completion it returns one exit code per stage, in stage
// order. If ctx's deadline passes it returns ErrTimeout — and touches
// nothing: the stages keep running, and terminating them remains the
// caller's explicit decision. A pipeline that Failed to launch returns
// its launch error.
func (p *Pipeline) Wait(ctx context.Context) ([]int, error) {
	p.mu.Lock()
	switch p.state {
	case StateBuilt:
		p.mu.Unlock()
		return nil, ErrNotStarted
	case StateFailed:
		err := p.failErr
		p.mu.Unlock()
		return nil, err
	}
	bg, runDone := p.bg, p.runDone
	procs := p.procs
	p.mu.Unlock()

	if bg {
		select {
		case <-runDone:
		case <-ctx.Done():
			return nil, waitErr(ctx)
		}
	} else {
		// Waiting is a channel select per stage, in order; the reaper
		// goroutines are the native wait primitive, so there is no
		// polling loop to tune.
		for _, pr := range procs {
			select {
			case <-pr.done:
			case <-ctx.Done():
				return nil, waitErr(ctx)
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateFailed {
		// Background launch failed after we were called.
		return nil, p.failErr
	}
	p.maybeCompleteLocked()
	codes := make([]int, len(p.procs))
	for i, pr := range p.procs {
		codes[i], _ = pr.exitCode()
	}
	return codes, nil
}

// WaitTimeout is Wait with a relative deadline.
func (p *Pipeline) WaitTimeout(d time.Duration) ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.Wait(ctx)
}

// WaitStatus waits like Wait and reduces the per-stage codes to a
// single status: the first non-zero exit code in stage order, or zero
// when every stage succeeded. This mirrors how shells report pipeline
// failure.
func (p *Pipeline) WaitStatus(ctx context.Context) (int, error) {
	codes, err := p.Wait(ctx)
	if err != nil {
		return 0, err
	}
	return aggregateStatus(codes), nil
}

// ExitStatus returns the aggregated pipeline status (first non-zero
// exit code in stage order, zero if all succeeded) without blocking.
// ok is false until every stage has exited.
func (p *Pipeline) ExitStatus() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeCompleteLocked()
	if p.state != StateLaunched && p.state != StateCompleted {
		return 0, false
	}
	if len(p.procs) != len(p.stages) {
		return 0, false
	}
	codes := make([]int, len(p.procs))
	for i, pr := range p.procs {
		code, ok := pr.exitCode()
		if !ok {
			return 0, false
		}
		codes[i] = code
	}
	return aggregateStatus(codes), true
}

func aggregateStatus(codes []int) int {
	for _, code := range codes {
		if code != 0 {
			return code
		}
	}
	return 0
}

func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

// Signal broadcasts sig to every spawned stage, skipping stages that
// have already exited. A stage exiting mid-broadcast is an expected
// race, not an error. Returns ErrNotStarted on a Built pipeline.
func (p *Pipeline) Signal(sig os.Signal) error {
	procs, err := p.signalable()
	if err != nil {
		return err
	}
	p.log.Debug("broadcasting signal", zap.String("signal", sig.String()))
	var first error
	for _, pr := range procs {
		if err := pr.signal(sig); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Terminate asks every running stage to exit (SIGTERM on Unix). It
// does not wait for them; follow with Wait.
func (p *Pipeline) Terminate() error {
	procs, err := p.signalable()
	if err != nil {
		return err
	}
	p.log.Debug("terminating pipeline")
	var first error
	for _, pr := range procs {
		if err := pr.terminate(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Kill forcibly ends every running stage (SIGKILL on Unix). It does
// not wait for them; follow with Wait.
func (p *Pipeline) Kill() error {
	procs, err := p.signalable()
	if err != nil {
		return err
	}
	p.log.Debug("killing pipeline")
	var first error
	for _, pr := range procs {
		if err := pr.kill(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// signalable snapshots the stage handles a broadcast may touch. During
// a background launch the snapshot may be short or empty; stages not
// yet spawned are skipped by design.
func (p *Pipeline) signalable() ([]*proc, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateBuilt {
		return nil, ErrNotStarted
	}
	procs := make([]*proc, len(p.procs))
	copy(procs, p.procs)
	return procs, nil
}

// Err returns the launch error once a pipeline has Failed, and nil
// otherwise. It is how background launch failures are observed without
// waiting.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failErr
}

// Output returns the bytes captured from the pipeline's terminal
// standard output. Only available once the pipeline has Completed;
// earlier calls return ErrNotCompleted, and pipelines whose stdout was
// not routed with Capture return ErrNotCaptured.
func (p *Pipeline) Output() ([]byte, error) {
	return p.captured("stdout")
}

// ErrOutput returns the bytes captured from the pipeline's terminal
// standard error, under the same rules as Output.
func (p *Pipeline) ErrOutput() ([]byte, error) {
	return p.captured("stderr")
}

func (p *Pipeline) captured(role string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeCompleteLocked()

	switch p.state {
	case StateBuilt:
		return nil, ErrNotStarted
	case StateFailed:
		return nil, p.failErr
	case StateLaunched:
		return nil, ErrNotCompleted
	}

	col := p.outCol
	if role == "stderr" {
		col = p.errCol
	}
	if col == nil {
		return nil, ErrNotCaptured
	}
	if col.err != nil {
		return nil, col.err
	}
	return col.data, nil
}

// OutputFile exposes the temporary file backing a synchronous stdout
// capture while the pipeline is still running, so callers can tail it
// (see the peekread package). Background captures are in-memory and
// have no file: ErrNotCaptured.
func (p *Pipeline) OutputFile() (*os.File, error) {
	return p.capturedFile("stdout")
}

// ErrOutputFile is OutputFile for the stderr capture.
func (p *Pipeline) ErrOutputFile() (*os.File, error) {
	return p.capturedFile("stderr")
}

func (p *Pipeline) capturedFile(role string) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateBuilt {
		return nil, ErrNotStarted
	}
	col := p.outCol
	if role == "stderr" {
		col = p.errCol
	}
	if col == nil || col.file == nil {
		return nil, ErrNotCaptured
	}
	return col.file, nil
}
