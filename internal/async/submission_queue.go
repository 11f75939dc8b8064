package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/proof-receipts/internal/common"
	"github.com/joseph-ayodele/proof-receipts/internal/pipeline"
)

// SubmissionQueue is a bounded channel drained by a fixed worker pool.
type SubmissionQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	wait    time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*SubmissionQueue)

func WithWorkers(n int) Option {
	return func(q *SubmissionQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *SubmissionQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *SubmissionQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithEnqueueWait bounds how long Enqueue waits for a slot on a full queue.
func WithEnqueueWait(d time.Duration) Option {
	return func(q *SubmissionQueue) {
		if d > 0 {
			q.wait = d
		}
	}
}

func NewSubmissionQueue(proc Processor, logger *slog.Logger, opts ...Option) *SubmissionQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &SubmissionQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		wait:    2 * time.Second,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *SubmissionQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *SubmissionQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}

	var out pipeline.Outcome
	if job.Prompt {
		out = q.proc.Prompt(ctx, job.Submission.Sender)
	} else {
		out = q.proc.Process(ctx, job.Submission)
	}

	attrs := []any{
		"worker_id", workerID,
		"request_id", job.RequestID,
		"state", out.State,
		"duplicate", out.Duplicate,
		"operation_id", out.OperationID,
		"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
	}
	if out.Err != nil {
		q.logger.Warn("queue.job.failed", append(attrs, "code", common.CodeOf(out.Err), "error", out.Err)...)
		return
	}
	q.logger.Info("queue.job.done", attrs...)
}

// Enqueue hands job to the workers. When the buffer is full it waits for a
// free slot, at most the enqueue wait, and then drops the job with ErrQueueFull.
func (q *SubmissionQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "request_id", job.RequestID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("queue.full", "request_id", job.RequestID, "capacity", cap(q.ch))
	timer := time.NewTimer(q.wait)
	defer timer.Stop()
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		q.logger.Error("queue.dropped",
			"request_id", job.RequestID,
			"sender", job.Submission.Sender,
			"waited_ms", q.wait.Milliseconds(),
		)
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (q *SubmissionQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted", "pending", len(q.ch))
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
