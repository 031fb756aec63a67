package peekread_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/subpipe/subpipe/peekread"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// syncBuffer makes a bytes.Buffer safe to share between the Follow
// goroutine and the test's assertions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollow(t *testing.T) {
	t.Parallel()

	f := tempFile(t, "one\n")
	r := peekread.New(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	var g errgroup.Group
	g.Go(func() error {
		return r.Follow(ctx, &out)
	})

	// The backlog is copied first.
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "one\n")
	}, 5*time.Second, 20*time.Millisecond)

	_, err := f.WriteString("two\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "two\n")
	}, 5*time.Second, 20*time.Millisecond)

	// A write that completes just before cancellation is still
	// delivered by the final drain.
	_, err = f.WriteString("three\n")
	require.NoError(t, err)
	cancel()

	require.NoError(t, g.Wait())
	assert.Equal(t, "one\ntwo\nthree\n", out.String())
}
