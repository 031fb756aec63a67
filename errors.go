package subpipe

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by pipeline lifecycle operations. Match
// them with `errors.Is`.
var (
	// ErrAlreadyStarted is returned by `Start` and `StartBackground`
	// when the pipeline has already been launched. A pipeline is
	// single-shot; a second start attempt never spawns anything.
	ErrAlreadyStarted = errors.New("pipeline already started")

	// ErrNotStarted is returned by operations that need a launched
	// pipeline (`Wait`, signal broadcasts, captured-output access)
	// when the pipeline is still only Built.
	ErrNotStarted = errors.New("pipeline not started")

	// ErrNotCompleted is returned when captured output is requested
	// while some stage is still running.
	ErrNotCompleted = errors.New("pipeline not completed")

	// ErrNotCaptured is returned when captured output is requested
	// for a stream that was not routed with `Capture`, or when
	// `OutputFile` is asked for a capture that has no backing file
	// (background captures accumulate in memory).
	ErrNotCaptured = errors.New("stream not captured")

	// ErrTimeout is returned by `Wait` and friends when the deadline
	// passes with stages still running. The stages are left running:
	// killing a timed-out pipeline is the caller's explicit decision.
	ErrTimeout = errors.New("timed out waiting for pipeline")

	// ErrNoStages is returned when starting a pipeline to which no
	// command was ever appended.
	ErrNoStages = errors.New("pipeline has no stages")
)

// SpawnError reports a failure to create the OS process for one
// stage: executable not found, permission denied, invalid working
// directory. By the time a SpawnError is returned, any stages spawned
// before the failing one have been killed and reaped, so a failed
// launch never leaves processes behind.
type SpawnError struct {
	Stage int    // zero-based index of the failing stage
	Name  string // the executable that could not be spawned
	Err   error  // the underlying OS error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning stage %d (%s): %v", e.Stage, e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StreamError reports a stream configuration that cannot be honored:
// a routing that is structurally invalid for the stage's position, or
// a redirection target that cannot be opened. It is always detected
// before any process is spawned, so no partial launch state exists
// when one is returned.
type StreamError struct {
	Stage int    // zero-based stage index, or -1 for pipeline-level configuration
	Role  string // "stdin", "stdout" or "stderr"
	Err   error
}

func (e *StreamError) Error() string {
	if e.Stage < 0 {
		return fmt.Sprintf("configuring pipeline %s: %v", e.Role, e.Err)
	}
	return fmt.Sprintf("configuring %s of stage %d: %v", e.Role, e.Stage, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
