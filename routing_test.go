package subpipe_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subpipe/subpipe"
)

// startStreamError starts p and requires the result to be a
// *StreamError, which validation raises before anything is spawned.
func startStreamError(t *testing.T, p *subpipe.Pipeline) *subpipe.StreamError {
	t.Helper()

	err := p.Start()
	var streamErr *subpipe.StreamError
	require.ErrorAs(t, err, &streamErr)
	require.Equal(t, subpipe.StateBuilt, p.State(),
		"configuration errors must leave the pipeline Built")
	return streamErr
}

func TestCaptureOnNonFinalStage(t *testing.T) {
	t.Parallel()

	p := subpipe.New()
	p.Append(subpipe.Cmd("producer").Via(subpipe.ViaStderr).Stdout(subpipe.Capture()))
	p.Append(subpipe.Cmd("consumer"))

	streamErr := startStreamError(t, p)
	assert.Equal(t, 0, streamErr.Stage)
	assert.Equal(t, "stdout", streamErr.Role)
}

func TestOverrideOnForwardedStream(t *testing.T) {
	t.Parallel()

	// The default Via forwards stdout, so a stdout override on a
	// non-final stage is contradictory.
	p := subpipe.New()
	p.Append(subpipe.Cmd("producer").Stdout(subpipe.Discard()))
	p.Append(subpipe.Cmd("consumer"))

	streamErr := startStreamError(t, p)
	assert.Equal(t, 0, streamErr.Stage)
	assert.Equal(t, "stdout", streamErr.Role)
}

func TestOverrideOnQuietedStream(t *testing.T) {
	t.Parallel()

	p := subpipe.New()
	p.Append(subpipe.Cmd("producer").Via(subpipe.ViaStdoutQuiet).Stderr(subpipe.Inherit()))
	p.Append(subpipe.Cmd("consumer"))

	streamErr := startStreamError(t, p)
	assert.Equal(t, 0, streamErr.Stage)
	assert.Equal(t, "stderr", streamErr.Role)
}

func TestConflictingInputSources(t *testing.T) {
	t.Parallel()

	p := subpipe.New(
		subpipe.WithInputString("one"),
		subpipe.WithInputFile("two"),
	)
	p.Append(subpipe.Cmd("consumer"))

	streamErr := startStreamError(t, p)
	assert.Equal(t, -1, streamErr.Stage)
	assert.Equal(t, "stdin", streamErr.Role)
}

func TestMissingInputFile(t *testing.T) {
	t.Parallel()

	p := subpipe.New(subpipe.WithInputFile(filepath.Join(t.TempDir(), "missing")))
	p.Append(subpipe.Cmd("consumer"))

	streamErr := startStreamError(t, p)
	assert.Equal(t, "stdin", streamErr.Role)
	assert.ErrorIs(t, streamErr, os.ErrNotExist)
}

func TestNilOutputHandle(t *testing.T) {
	t.Parallel()

	p := subpipe.New(subpipe.WithStdout(subpipe.ToHandle(nil)))
	p.Append(subpipe.Cmd("producer"))

	// StartBackground reports configuration problems synchronously too.
	err := p.StartBackground()
	var streamErr *subpipe.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "stdout", streamErr.Role)
	assert.Equal(t, subpipe.StateBuilt, p.State())
}

func TestUnwritableRedirectionTarget(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test skipped on Windows: no Unix permission classes")
	}
	if os.Geteuid() == 0 {
		t.Skip("test skipped as root: root may write anywhere")
	}
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	p := subpipe.New(subpipe.WithStdout(subpipe.ToFile(filepath.Join(dir, "out"))))
	p.Append(subpipe.Cmd("producer"))

	streamErr := startStreamError(t, p)
	assert.Equal(t, "stdout", streamErr.Role)
	assert.ErrorIs(t, streamErr, os.ErrPermission)
}

func TestEmptyRedirectionPath(t *testing.T) {
	t.Parallel()

	p := subpipe.New(subpipe.WithStderr(subpipe.ToFile("")))
	p.Append(subpipe.Cmd("producer"))

	streamErr := startStreamError(t, p)
	assert.Equal(t, "stderr", streamErr.Role)
}
