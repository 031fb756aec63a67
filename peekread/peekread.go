// Package peekread reads the current contents of a file that another
// writer still has open, without disturbing that writer.
//
// A Reader keeps its own offset and reads with ReadAt, so the
// underlying descriptor's position never moves. This makes it safe to
// inspect a file while a child process appends to it: the writer keeps
// writing at its own offset, and the Reader sees everything written so
// far. Reads past the current end return io.EOF; once the file has
// grown, reading simply resumes.
package peekread

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

const chunkSize = 64 * 1024

// A Reader is a read-only overlay on an open file. It is not safe for
// concurrent use.
type Reader struct {
	f      *os.File
	offset int64
	closed bool
}

// New returns a Reader positioned at the start of f. The Reader does
// not take ownership of f; closing the Reader leaves f open.
func New(f *os.File) *Reader {
	return &Reader{f: f}
}

// Read implements io.Reader at the Reader's own offset. At the current
// end of the file it returns io.EOF, but the file may still grow;
// later reads pick up new data.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}
	n, err := r.f.ReadAt(p, r.offset)
	r.offset += int64(n)
	return n, err
}

// ReadTo reads until delim has been consumed, max bytes have been
// read, or the current end of the file is reached, whichever comes
// first. The returned data includes delim when it was found, and the
// offset is left just past it. A max < 0 means no limit; a nil delim
// reads to the limit or the end. ReadTo returns io.EOF only when the
// end of the file stopped it.
func (r *Reader) ReadTo(delim []byte, max int64) ([]byte, error) {
	if r.closed {
		return nil, fs.ErrClosed
	}

	var full []byte
	var carry []byte // consumed tail that could start a delimiter split across chunks
	remaining := max
	for {
		size := int64(chunkSize)
		if max >= 0 && remaining < size {
			size = remaining
		}
		if size == 0 {
			return full, nil
		}

		buf := make([]byte, size)
		n, err := r.f.ReadAt(buf, r.offset)
		r.offset += int64(n)
		chunk := buf[:n]

		if len(delim) > 0 {
			// Search the carried tail together with the new chunk, so
			// a delimiter straddling the boundary is still seen.
			window := chunk
			if len(carry) > 0 {
				window = append(carry, chunk...)
			}
			if j := bytes.Index(window, delim); j >= 0 {
				end := j + len(delim) - (len(window) - len(chunk))
				full = append(full, chunk[:end]...)
				// Give back the part of the chunk beyond the
				// delimiter.
				r.offset -= int64(len(chunk) - end)
				return full, nil
			}
			keep := len(delim) - 1
			if keep > len(window) {
				keep = len(window)
			}
			carry = append([]byte(nil), window[len(window)-keep:]...)
		}
		full = append(full, chunk...)
		if max >= 0 {
			remaining -= int64(n)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return full, io.EOF
			}
			return full, err
		}
	}
}

// ReadLine reads one line, including the trailing newline. A partial
// line at the current end of the file is returned along with io.EOF.
func (r *Reader) ReadLine() (string, error) {
	line, err := r.ReadTo([]byte{'\n'}, -1)
	return string(line), err
}

// ReadLines reads from the offset to the current end of the file and
// returns the lines, without their newlines.
func (r *Reader) ReadLines() ([]string, error) {
	rest, err := r.ReadTo(nil, -1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, nil
	}
	lines := strings.Split(string(rest), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// Seek implements io.Seeker on the Reader's offset. io.SeekEnd is
// relative to the file's current size.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.offset + offset
	case io.SeekEnd:
		info, err := r.f.Stat()
		if err != nil {
			return 0, err
		}
		pos = info.Size() + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("negative position")
	}
	r.offset = pos
	return pos, nil
}

// Offset returns the Reader's current offset.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Close detaches the Reader. The underlying file stays open; further
// calls on the Reader fail with fs.ErrClosed.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}
