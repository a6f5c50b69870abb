package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoforge/internal/testutil"
)

func TestQueueExecutesTasks(t *testing.T) {
	t.Parallel()

	var executed atomic.Int64
	q := NewQueue(QueueConfig{BufferSize: 8, Workers: 2}, func(jobID string, req *Request) {
		executed.Add(1)
	}, nil)
	defer q.Close(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue("job", &Request{}))
	}

	testutil.MustWaitForCount(t, &executed, 5)

	stats := q.Stats()
	assert.Equal(t, int64(5), stats.Enqueued)
	assert.Zero(t, stats.Dropped)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	q := NewQueue(QueueConfig{BufferSize: 1, Workers: 1}, func(jobID string, req *Request) {
		<-block
	}, nil)
	defer func() {
		close(block)
		q.Close(context.Background())
	}()

	// First task occupies the worker, second fills the buffer.
	require.NoError(t, q.Enqueue("job-1", &Request{}))
	testutil.MustWaitFor(t, func() bool { return q.Stats().Depth == 0 })
	require.NoError(t, q.Enqueue("job-2", &Request{}))

	assert.ErrorIs(t, q.Enqueue("job-overflow", &Request{}), ErrQueueFull)
	assert.Positive(t, q.Stats().Dropped)
}

func TestQueueCloseDrainsBuffer(t *testing.T) {
	t.Parallel()

	var executed atomic.Int64
	q := NewQueue(QueueConfig{BufferSize: 16, Workers: 1}, func(jobID string, req *Request) {
		time.Sleep(5 * time.Millisecond)
		executed.Add(1)
	}, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue("job", &Request{}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
	assert.Equal(t, int64(10), executed.Load())
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(QueueConfig{BufferSize: 4, Workers: 1}, func(jobID string, req *Request) {}, nil)
	require.NoError(t, q.Close(context.Background()))

	assert.ErrorIs(t, q.Enqueue("late", &Request{}), ErrQueueFull)

	// Closing twice is safe
	assert.NoError(t, q.Close(context.Background()))
}

func TestQueueConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := QueueConfig{}.withDefaults()
	assert.Equal(t, 256, cfg.BufferSize)
	assert.Equal(t, 4, cfg.Workers)

	cfg = QueueConfig{BufferSize: 10, Workers: 2}.withDefaults()
	assert.Equal(t, 10, cfg.BufferSize)
	assert.Equal(t, 2, cfg.Workers)
}
