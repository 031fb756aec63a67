package subpipe

import (
	"bytes"
	"io"
	"os"
)

// collector gathers one captured stream. A synchronous pipeline writes
// the stream straight into an anonymous temporary file that is read
// back exactly once after completion (no drain task, seekable, no
// backpressure however large the output). A background pipeline writes
// into an OS pipe drained by a dedicated goroutine into memory, so a
// chatty child never blocks on an unread pipe buffer.
type collector struct {
	role string // "stdout" or "stderr", for logs and errors

	// File strategy. The file stays open (and on disk) until the
	// pipeline is closed, so callers can peek at it mid-run.
	file *os.File

	// Pipe strategy.
	pr  *os.File
	buf bytes.Buffer

	data []byte
	err  error
}

// newFileCollector creates a collector backed by a temporary file and
// returns it. The file itself is the sink handed to the child; the
// parent keeps the same handle for reading back and for peeking.
func newFileCollector(role string) (*collector, error) {
	f, err := os.CreateTemp("", "subpipe-"+role+"-*")
	if err != nil {
		return nil, err
	}
	return &collector{role: role, file: f}, nil
}

// newPipeCollector creates a collector backed by an OS pipe and
// returns it along with the write end to hand to the child. The parent
// must close its copy of the write end once the last stage using it
// has spawned, or the drain never sees EOF.
func newPipeCollector(role string) (*collector, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return &collector{role: role, pr: r}, w, nil
}

// drain copies the pipe into memory until every write end is closed.
// Run on its own goroutine while the pipeline runs.
func (c *collector) drain() error {
	_, err := io.Copy(&c.buf, c.pr)
	if cErr := c.pr.Close(); err == nil {
		err = cErr
	}
	c.err = err
	return err
}

// finalize publishes the captured bytes. Called exactly once, after
// every stage has exited (and, for the pipe strategy, after the drain
// has returned).
func (c *collector) finalize() {
	if c.err != nil {
		return
	}
	if c.file == nil {
		c.data = c.buf.Bytes()
		return
	}
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		c.err = err
		return
	}
	data, err := io.ReadAll(c.file)
	if err != nil {
		c.err = err
		return
	}
	c.data = data
}

// close releases the collector's backing file, if any. Idempotent.
func (c *collector) close() error {
	if c.file == nil {
		return nil
	}
	name := c.file.Name()
	err := c.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	c.file = nil
	return err
}
