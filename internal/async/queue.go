// Package async runs submissions off the request path so webhooks can be
// acknowledged immediately.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/proof-receipts/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// ErrQueueFull is returned when no slot freed up within the enqueue wait.
var ErrQueueFull = errors.New("queue is full")

// Job is one inbound message. Prompt jobs carry only a sender.
type Job struct {
	Submission  pipeline.Submission
	Prompt      bool
	SubmittedAt time.Time
	RequestID   string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor is the pipeline as seen by the workers.
type Processor interface {
	Process(ctx context.Context, sub pipeline.Submission) pipeline.Outcome
	Prompt(ctx context.Context, sender string) pipeline.Outcome
}
