package subpipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/subpipe/subpipe/filetest"
)

// Stream describes where one of a stage's standard streams is routed.
// The zero value means "unrouted": on the final stage it defers to the
// pipeline-level specification for the same stream, on earlier stages
// it is inherited. Streams are a closed set: construct them only with
// the functions below.
type Stream struct {
	kind streamKind
	path string
	file *os.File
}

type streamKind int

const (
	streamDefault streamKind = iota
	streamInherit
	streamCapture
	streamDiscard
	streamFile
	streamHandle
)

// Inherit routes the stream to the parent process's corresponding
// stream (the console, usually).
func Inherit() Stream { return Stream{kind: streamInherit} }

// Capture routes the stream into an engine-owned destination that is
// read back after the pipeline completes: a temporary file for
// synchronous pipelines, an in-memory buffer drained by a background
// goroutine for background pipelines. Valid as a pipeline-level
// specification or on the final stage.
func Capture() Stream { return Stream{kind: streamCapture} }

// Discard routes the stream to the null device.
func Discard() Stream { return Stream{kind: streamDiscard} }

// ToFile routes the stream to the named file, created or truncated at
// launch. As a pipeline input specification the file is opened for
// reading instead.
func ToFile(path string) Stream { return Stream{kind: streamFile, path: path} }

// ToHandle routes the stream to an open file owned by the caller. The
// engine never closes it; the caller must keep it valid for the
// pipeline's lifetime.
func ToHandle(f *os.File) Stream { return Stream{kind: streamHandle, file: f} }

func (s Stream) isSet() bool { return s.kind != streamDefault }

func (s Stream) String() string {
	switch s.kind {
	case streamDefault:
		return "default"
	case streamInherit:
		return "inherit"
	case streamCapture:
		return "capture"
	case streamDiscard:
		return "discard"
	case streamFile:
		return fmt.Sprintf("file(%s)", s.path)
	case streamHandle:
		return "handle"
	default:
		return "invalid"
	}
}

// inputSpec describes where the first stage's standard input comes
// from. Exactly one source may be configured.
type inputSpec struct {
	kind     inputKind
	payload  []byte
	path     string
	file     *os.File
	conflict bool // more than one source was configured
}

type inputKind int

const (
	inputInherit inputKind = iota
	inputPayload
	inputFile
	inputHandle
)

func (in *inputSpec) set(kind inputKind) {
	if in.kind != inputInherit {
		in.conflict = true
	}
	in.kind = kind
}

// validateRouting checks every stream specification for structural
// problems and unusable redirection targets. It runs before a single
// process is spawned, so a configuration mistake can never leave a
// partial launch behind.
func (p *Pipeline) validateRouting() error {
	if p.input.conflict {
		return &StreamError{Stage: -1, Role: "stdin", Err: errors.New("multiple input sources configured")}
	}
	if p.input.kind == inputFile {
		if err := checkReadableTarget(p.input.path); err != nil {
			return &StreamError{Stage: -1, Role: "stdin", Err: err}
		}
	}
	if p.input.kind == inputHandle && p.input.file == nil {
		return &StreamError{Stage: -1, Role: "stdin", Err: errors.New("nil input handle")}
	}

	if err := checkTerminalSpec(p.stdout); err != nil {
		return &StreamError{Stage: -1, Role: "stdout", Err: err}
	}
	if err := checkTerminalSpec(p.stderr); err != nil {
		return &StreamError{Stage: -1, Role: "stderr", Err: err}
	}

	last := len(p.stages) - 1
	for i, c := range p.stages {
		if i < last {
			if err := checkForwarding(c); err != nil {
				return &StreamError{Stage: i, Role: err.role, Err: err.err}
			}
		}
		if err := checkStageSpec(c.stdout, i, last); err != nil {
			return &StreamError{Stage: i, Role: "stdout", Err: err}
		}
		if err := checkStageSpec(c.stderr, i, last); err != nil {
			return &StreamError{Stage: i, Role: "stderr", Err: err}
		}
	}
	return nil
}

type forwardingError struct {
	role string
	err  error
}

func (e *forwardingError) Error() string { return e.err.Error() }

// checkForwarding rejects routing overrides on streams that a
// non-final stage's Via selector already spoke for.
func checkForwarding(c *Command) *forwardingError {
	v := c.via
	if c.stdout.isSet() {
		switch {
		case v.forwardsStdout():
			return &forwardingError{"stdout", fmt.Errorf("stdout is forwarded to the next stage (%v)", v)}
		case v == ViaStderrQuiet:
			return &forwardingError{"stdout", fmt.Errorf("stdout is discarded by %v", v)}
		}
	}
	if c.stderr.isSet() {
		switch {
		case v.forwardsStderr():
			return &forwardingError{"stderr", fmt.Errorf("stderr is forwarded to the next stage (%v)", v)}
		case v == ViaStdoutQuiet:
			return &forwardingError{"stderr", fmt.Errorf("stderr is discarded by %v", v)}
		}
	}
	return nil
}

// checkStageSpec validates one per-stage routing override.
func checkStageSpec(s Stream, stage, last int) error {
	switch s.kind {
	case streamCapture:
		if stage != last {
			return errors.New("capture is only valid on the final stage")
		}
	case streamFile:
		return checkWritableTarget(s.path)
	case streamHandle:
		if s.file == nil {
			return errors.New("nil stream handle")
		}
	}
	return nil
}

// checkTerminalSpec validates a pipeline-level output specification.
func checkTerminalSpec(s Stream) error {
	switch s.kind {
	case streamFile:
		return checkWritableTarget(s.path)
	case streamHandle:
		if s.file == nil {
			return errors.New("nil stream handle")
		}
	}
	return nil
}

// checkWritableTarget reports whether `path` could be created or
// truncated by the effective caller, without opening it yet.
func checkWritableTarget(path string) error {
	if path == "" {
		return errors.New("empty redirection path")
	}
	if filetest.Exists(path) {
		ok, err := filetest.Writable(path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", path, os.ErrPermission)
		}
		return nil
	}
	dir := filepath.Dir(path)
	ok, err := filetest.Writable(dir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: directory not writable: %w", path, os.ErrPermission)
	}
	return nil
}

// checkReadableTarget reports whether `path` names a readable file.
func checkReadableTarget(path string) error {
	if path == "" {
		return errors.New("empty redirection path")
	}
	if !filetest.Exists(path) {
		return fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	ok, err := filetest.Readable(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", path, os.ErrPermission)
	}
	return nil
}
