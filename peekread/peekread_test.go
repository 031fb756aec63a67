package peekread_test

import (
	"io"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/subpipe/subpipe/peekread"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T, contents string) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "peek-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	return f
}

func TestReadLeavesWriterAlone(t *testing.T) {
	t.Parallel()

	f := tempFile(t, "Hello\nWorld\n1234\n")
	r := peekread.New(f)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld\n1234\n", string(data))

	// The writer's own position is still at the end of its writes.
	pos, err := f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(17), pos)
}

func TestReadLine(t *testing.T) {
	t.Parallel()

	r := peekread.New(tempFile(t, "Hello\nWorld\n1234\n"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", line)
	assert.Equal(t, int64(6), r.Offset())

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "World\n", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "1234\n", line)

	line, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, line)
}

func TestReadLineWithoutNewline(t *testing.T) {
	t.Parallel()

	r := peekread.New(tempFile(t, "partial"))

	line, err := r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "partial", line)
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	r := peekread.New(tempFile(t, "Hello\nWorld\n\n1234\n"))

	lines, err := r.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", "World", "", "1234"}, lines)

	// Everything has been consumed.
	lines, err = r.ReadLines()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReadTo(t *testing.T) {
	t.Parallel()

	r := peekread.New(tempFile(t, "Hello\nWorld\n1234\n"))

	data, err := r.ReadTo([]byte("World"), -1)
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld", string(data))
	assert.Equal(t, int64(11), r.Offset())

	// A byte budget stops the read without an error.
	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	data, err = r.ReadTo(nil, 5)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(data))
}

func TestReadToDelimiterAcrossChunks(t *testing.T) {
	t.Parallel()

	// Lay the delimiter exactly across the 64 KiB read-chunk boundary:
	// the first byte at the end of one chunk, the second at the start
	// of the next.
	const chunk = 64 * 1024
	head := strings.Repeat("a", chunk-1)
	r := peekread.New(tempFile(t, head+"XY"+"rest"))

	data, err := r.ReadTo([]byte("XY"), -1)
	require.NoError(t, err)
	assert.Equal(t, head+"XY", string(data))
	assert.Equal(t, int64(chunk+1), r.Offset())

	rest, err := r.ReadTo(nil, -1)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "rest", string(rest))

	// A longer delimiter, split with two bytes before the boundary and
	// one after.
	r = peekread.New(tempFile(t, strings.Repeat("b", chunk-2)+"XYZ"+"end"))

	data, err = r.ReadTo([]byte("XYZ"), -1)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "XYZ"))
	assert.Equal(t, int64(chunk+1), r.Offset())
}

func TestReadPicksUpGrowth(t *testing.T) {
	t.Parallel()

	f := tempFile(t, "one\n")
	r := peekread.New(f)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "one\n", line)

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)

	_, err = f.WriteString("two\n")
	require.NoError(t, err)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "two\n", line)
}

func TestSeekEnd(t *testing.T) {
	t.Parallel()

	r := peekread.New(tempFile(t, "Hello\nWorld\n1234\n"))

	pos, err := r.Seek(-6, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(11), pos)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "1234\n", line)

	_, err = r.Seek(-1, io.SeekStart)
	assert.Error(t, err)
}

func TestCloseDetaches(t *testing.T) {
	t.Parallel()

	f := tempFile(t, "data\n")
	r := peekread.New(f)
	require.NoError(t, r.Close())

	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, fs.ErrClosed)

	// The underlying file is untouched and still writable.
	_, err = f.WriteString("more\n")
	assert.NoError(t, err)
}
