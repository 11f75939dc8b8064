package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/proof-receipts/constants"
	"github.com/joseph-ayodele/proof-receipts/internal/common"
	"github.com/joseph-ayodele/proof-receipts/internal/pipeline"
)

type MockProcessor struct {
	processed atomic.Int32
	prompted  atomic.Int32

	mu         sync.Mutex
	requestIDs []string
	block      chan struct{}
}

func (m *MockProcessor) Process(ctx context.Context, sub pipeline.Submission) pipeline.Outcome {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.requestIDs = append(m.requestIDs, common.RequestIDFromContext(ctx))
	m.mu.Unlock()
	m.processed.Add(1)
	return pipeline.Outcome{State: constants.StateDone}
}

func (m *MockProcessor) Prompt(context.Context, string) pipeline.Outcome {
	m.prompted.Add(1)
	return pipeline.Outcome{State: constants.StateDone}
}

func TestQueueProcessesAndDrains(t *testing.T) {
	proc := &MockProcessor{}
	q := NewSubmissionQueue(proc, nil, WithWorkers(3), WithQueueSize(8))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if err := q.Enqueue(ctx, Job{Submission: pipeline.Submission{Sender: "58414"}, RequestID: "req-1"}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := q.Enqueue(ctx, Job{Prompt: true, Submission: pipeline.Submission{Sender: "58414"}}); err != nil {
		t.Fatalf("Enqueue prompt: %v", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q.Shutdown(sctx)

	if got := proc.processed.Load(); got != 20 {
		t.Fatalf("processed = %d, want 20", got)
	}
	if got := proc.prompted.Load(); got != 1 {
		t.Fatalf("prompted = %d, want 1", got)
	}
	proc.mu.Lock()
	defer proc.mu.Unlock()
	for _, id := range proc.requestIDs {
		if id != "req-1" {
			t.Fatalf("request id not propagated: %q", id)
		}
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewSubmissionQueue(&MockProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	if err := q.Enqueue(context.Background(), Job{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestEnqueueFullQueueRespectsContext(t *testing.T) {
	proc := &MockProcessor{block: make(chan struct{})}
	q := NewSubmissionQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	bg := context.Background()
	// one job held by the worker, one in the buffer
	_ = q.Enqueue(bg, Job{})
	_ = q.Enqueue(bg, Job{})

	ctx, cancel := context.WithTimeout(bg, 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{})
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	close(proc.block)
	q.Shutdown(bg)
}

func TestEnqueueFullQueueDropsAfterWait(t *testing.T) {
	proc := &MockProcessor{block: make(chan struct{})}
	q := NewSubmissionQueue(proc, nil, WithWorkers(1), WithQueueSize(1), WithEnqueueWait(20*time.Millisecond))

	bg := context.Background()
	var err error
	start := time.Now()
	for i := 0; i < 4 && err == nil; i++ {
		err = q.Enqueue(bg, Job{RequestID: "r"})
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if waited := time.Since(start); waited > 2*time.Second {
		t.Fatalf("enqueue blocked for %s", waited)
	}

	close(proc.block)
	q.Shutdown(bg)
}
