package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"videoforge/internal/config"
)

// ErrQueueFull is returned when the pipeline queue cannot accept more work.
var ErrQueueFull = errors.New("pipeline queue full")

// QueueConfig holds configuration for the pipeline queue.
type QueueConfig struct {
	BufferSize int // pending pipelines buffer (default: 256)
	Workers    int // concurrent pipeline goroutines (default: 4, min 1)
}

// LoadQueueConfigFromEnv loads queue configuration from environment variables.
func LoadQueueConfigFromEnv() QueueConfig {
	cfg := QueueConfig{
		BufferSize: config.GetIntEnv("PIPELINE_BUFFER_SIZE", 256),
		Workers:    config.GetIntEnv("PIPELINE_WORKERS", 4),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c QueueConfig) withDefaults() QueueConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// QueueMetrics is an optional interface for recording queue metrics.
type QueueMetrics interface {
	RecordQueueDepth(ctx context.Context, size int64)
	RecordQueueDropped(ctx context.Context)
}

type pipelineTask struct {
	jobID string
	req   *Request
}

// Queue decouples job submission from pipeline execution: Enqueue is
// non-blocking and a fixed worker pool drains the buffer. Submission
// registers the job as waiting before enqueueing, so a full buffer never
// loses a job silently; the caller turns ErrQueueFull into a failed record.
type Queue struct {
	tasks   chan pipelineTask
	exec    func(jobID string, req *Request)
	logger  *slog.Logger
	metrics QueueMetrics

	enqueued atomic.Int64
	executed atomic.Int64
	dropped  atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// QueueStats holds queue counters.
type QueueStats struct {
	Depth    int   // tasks currently buffered
	Enqueued int64 // total tasks accepted
	Executed int64 // total pipelines run
	Dropped  int64 // total tasks rejected with ErrQueueFull
}

// NewQueue creates a pipeline queue and starts its workers.
// exec runs one pipeline to completion; it must not panic.
func NewQueue(cfg QueueConfig, exec func(jobID string, req *Request), metrics QueueMetrics) *Queue {
	cfg = cfg.withDefaults()

	q := &Queue{
		tasks:    make(chan pipelineTask, cfg.BufferSize),
		exec:     exec,
		logger:   slog.With("component", "pipeline-queue"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	q.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go q.worker()
	}

	if metrics != nil {
		go q.reportDepth()
	}

	q.logger.Info("Pipeline queue started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return q
}

// Enqueue hands a job to the worker pool. Non-blocking; returns ErrQueueFull
// if the buffer is saturated or the queue is closed.
func (q *Queue) Enqueue(jobID string, req *Request) error {
	if q.closed.Load() {
		return ErrQueueFull
	}

	select {
	case q.tasks <- pipelineTask{jobID: jobID, req: req}:
		q.enqueued.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		if q.metrics != nil {
			q.metrics.RecordQueueDropped(context.Background())
		}
		q.logger.Warn("Pipeline rejected, buffer full", "jobId", jobID)
		return ErrQueueFull
	}
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Depth:    len(q.tasks),
		Enqueued: q.enqueued.Load(),
		Executed: q.executed.Load(),
		Dropped:  q.dropped.Load(),
	}
}

// Close stops accepting work and waits for workers to drain the buffer.
// The context deadline bounds the wait.
func (q *Queue) Close(ctx context.Context) error {
	if q.closed.Swap(true) {
		return nil // already closed
	}

	q.logger.Info("Pipeline queue shutting down", "pending", len(q.tasks))
	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Pipeline queue drained", "executed", q.executed.Load())
		return nil
	case <-ctx.Done():
		q.logger.Warn("Pipeline queue shutdown timed out", "remaining", len(q.tasks))
		return ctx.Err()
	}
}

// worker runs pipelines from the buffer until shutdown.
func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.shutdown:
			q.drain()
			return
		case task := <-q.tasks:
			q.exec(task.jobID, task.req)
			q.executed.Add(1)
		}
	}
}

// drain runs remaining buffered pipelines after the shutdown signal.
func (q *Queue) drain() {
	for {
		select {
		case task := <-q.tasks:
			q.exec(task.jobID, task.req)
			q.executed.Add(1)
		default:
			return // buffer empty
		}
	}
}

// reportDepth periodically reports the buffer depth metric.
func (q *Queue) reportDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.shutdown:
			return
		case <-ticker.C:
			q.metrics.RecordQueueDepth(context.Background(), int64(len(q.tasks)))
		}
	}
}
