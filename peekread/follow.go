package peekread

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/fsnotify/fsnotify"
)

// followInterval is the polling backstop for Follow. A filesystem
// watch normally reacts much sooner; the ticker covers files fsnotify
// cannot watch and events it drops.
const followInterval = 200 * time.Millisecond

// Follow copies everything from the Reader's offset to w, then keeps
// copying as the file grows, until ctx ends. The file already in place
// is drained one last time before returning, so a writer that finished
// just before cancellation is not truncated. Follow returns nil when
// stopped by ctx; any other return is a read or write failure.
func (r *Reader) Follow(ctx context.Context, w io.Writer) error {
	var events chan fsnotify.Event
	var watchErrs chan error

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer func() { _ = watcher.Close() }()
		// A failed Add just means no events ever arrive; the ticker
		// still drives the copy loop.
		if err := watcher.Add(r.f.Name()); err == nil {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	buf := make([]byte, chunkSize)
	for {
		if err := r.copyAvailable(w, buf); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return r.copyAvailable(w, buf)
		case <-events:
			// Any event on the file is a reason to look again.
		case <-watchErrs:
			// Watch degraded; the ticker keeps us live.
		case <-ticker.C:
		}
	}
}

// copyAvailable copies from the offset to the current end of the file.
func (r *Reader) copyAvailable(w io.Writer, buf []byte) error {
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil // caught up
			}
			return err
		}
	}
}
