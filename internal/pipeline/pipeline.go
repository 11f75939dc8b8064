// Package pipeline turns an inbound payment proof into a delivered receipt.
//
// A submission is fetched, stored, fingerprinted and claimed in the ledger.
// Only the first claim of a fingerprint goes on to extraction, rendering,
// delivery and the audit sink; later ones get a short duplicate notice.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/proof-receipts/constants"
	"github.com/joseph-ayodele/proof-receipts/internal/common"
	"github.com/joseph-ayodele/proof-receipts/internal/extract"
	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
	"github.com/joseph-ayodele/proof-receipts/internal/ledger"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/notify"
	"github.com/joseph-ayodele/proof-receipts/internal/render"
	"github.com/joseph-ayodele/proof-receipts/internal/sink"
)

// Submission is one inbound message that carried an attachment.
type Submission struct {
	Sender     string
	Media      media.Locator
	ReceivedAt time.Time
}

// Outcome reports how far a submission got.
type Outcome struct {
	State       constants.State
	States      []constants.State
	Duplicate   bool
	Fingerprint fingerprint.Fingerprint
	OperationID string
	ReceiptURL  string
	Err         error
}

func (o *Outcome) advance(s constants.State) {
	o.State = s
	o.States = append(o.States, s)
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Fetcher   media.Fetcher
	Uploads   media.Store
	Receipts  media.Store
	Ledger    ledger.Ledger
	Extractor extract.Extractor
	Renderer  render.Renderer
	Notifier  notify.Notifier
	Sink      sink.Sink
}

// Options bound each external call. A zero timeout leaves the call bounded
// only by the caller's context.
type Options struct {
	FetchTimeout   time.Duration
	StoreTimeout   time.Duration
	ExtractTimeout time.Duration
	RenderTimeout  time.Duration
	NotifyTimeout  time.Duration
	SinkTimeout    time.Duration

	// FailureNotice sends FailureText when a claimed submission cannot be rendered.
	FailureNotice bool
	IDPrefix      string
}

type Pipeline struct {
	deps   Deps
	opts   Options
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Pipeline)

func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newID = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func New(deps Deps, opts Options, logger *slog.Logger, extra ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: media fetcher is required")
	case deps.Uploads == nil:
		return nil, errors.New("pipeline: uploads store is required")
	case deps.Receipts == nil:
		return nil, errors.New("pipeline: receipts store is required")
	case deps.Ledger == nil:
		return nil, errors.New("pipeline: ledger is required")
	case deps.Renderer == nil:
		return nil, errors.New("pipeline: renderer is required")
	case deps.Notifier == nil:
		return nil, errors.New("pipeline: notifier is required")
	case deps.Sink == nil:
		return nil, errors.New("pipeline: sink is required")
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.Nop{}
	}
	p := &Pipeline{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
	p.newID = func() string { return NewOperationID(p.opts.IDPrefix) }
	for _, o := range extra {
		o(p)
	}
	return p, nil
}

// Process runs one submission to completion. It never panics into the
// caller; failures are logged and reported on the Outcome.
func (p *Pipeline) Process(ctx context.Context, sub Submission) (out Outcome) {
	sender := notify.NormalizeNumber(sub.Sender)
	log := p.logger.With("sender", sender, "request_id", common.RequestIDFromContext(ctx))
	out.advance(constants.StateReceived)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.panic", "state", out.State, "panic", r)
			if out.Err == nil {
				out.Err = common.NewAppError("PANIC", "pipeline panicked", common.ErrInternal)
			}
		}
	}()

	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = p.now()
	}

	// 1. fetch
	blob, err := call(ctx, p.opts.FetchTimeout, func(ctx context.Context) (media.Blob, error) {
		return p.deps.Fetcher.Fetch(ctx, sub.Media)
	})
	if err != nil {
		out.Err = common.FetchError("fetch media", err)
		log.Error("pipeline.fetch.failed", "state", out.State, "error", err)
		return out
	}
	if blob.ContentType == "" {
		blob.ContentType = sub.Media.ContentType
	}

	// 2. keep the latest proof per sender
	key := sender + "." + constants.ExtForContentType(blob.ContentType)
	proof, err := call(ctx, p.opts.StoreTimeout, func(ctx context.Context) (media.Object, error) {
		return p.deps.Uploads.Put(ctx, key, blob.Data, blob.ContentType)
	})
	if err != nil {
		out.Err = common.StoreError("store proof", err)
		log.Error("pipeline.store_proof.failed", "state", out.State, "key", key, "error", err)
		return out
	}

	// 3. fingerprint
	out.Fingerprint = fingerprint.Of(blob.Data)
	out.advance(constants.StateFingerprinted)
	log = log.With("fingerprint", out.Fingerprint.Short())

	// 4+5. claim
	claimed, err := p.deps.Ledger.Claim(ctx, out.Fingerprint)
	if err != nil {
		out.Err = common.LedgerError("claim fingerprint", err)
		log.Error("pipeline.claim.failed", "state", out.State, "error", err)
		return out
	}
	if !claimed {
		out.Duplicate = true
		out.advance(constants.StateDuplicate)
		log.Info("pipeline.claim.duplicate")
		if err := p.sendText(ctx, sender, DuplicateText); err != nil {
			out.Err = common.NotifyError("send duplicate notice", err)
			log.Error("pipeline.notify_duplicate.failed", "state", out.State, "error", err)
			return out
		}
		out.advance(constants.StateNotifiedDuplicate)
		out.advance(constants.StateDone)
		return out
	}
	out.advance(constants.StateNovel)

	// 6. extraction is best effort
	fields, err := call(ctx, p.opts.ExtractTimeout, func(ctx context.Context) (extract.Fields, error) {
		return p.deps.Extractor.Extract(ctx, blob)
	})
	if err != nil {
		log.Warn("pipeline.extract.failed", "state", out.State, "error", common.ExtractionError("extract fields", err))
		fields = extract.Fields{}
	}
	out.advance(constants.StateExtracted)

	// 7. operation id
	out.OperationID = p.newID()
	log = log.With("operation_id", out.OperationID)
	issuedAt := p.now()

	// 8. render and publish
	png, err := call(ctx, p.opts.RenderTimeout, func(ctx context.Context) ([]byte, error) {
		return p.deps.Renderer.Render(ctx, render.Receipt{
			OperationID: out.OperationID,
			Sender:      sender,
			IssuedAt:    issuedAt,
			Fields:      fields,
		})
	})
	if err != nil {
		out.Err = common.RenderError("render receipt", err)
		log.Error("pipeline.render.failed", "state", out.State, "error", err)
		p.failureNotice(ctx, log, sender)
		return out
	}
	receipt, err := call(ctx, p.opts.StoreTimeout, func(ctx context.Context) (media.Object, error) {
		return p.deps.Receipts.Put(ctx, out.OperationID+".png", png, constants.ReceiptContentType)
	})
	if err != nil {
		out.Err = common.StoreError("store receipt", err)
		log.Error("pipeline.store_receipt.failed", "state", out.State, "error", err)
		p.failureNotice(ctx, log, sender)
		return out
	}
	out.ReceiptURL = receipt.URL
	out.advance(constants.StateRendered)

	// 9. deliver
	_, err = call(ctx, p.opts.NotifyTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.deps.Notifier.SendMedia(ctx, sender, out.ReceiptURL, ReceiptCaption)
	})
	if err != nil {
		out.Err = common.NotifyError("deliver receipt", err)
		log.Error("pipeline.notify.failed", "state", out.State, "error", err)
		return out
	}
	out.advance(constants.StateNotified)

	// 10. audit row
	rec := sink.OperationRecord{
		OperationID: out.OperationID,
		Sender:      sender,
		Timestamp:   issuedAt,
		ProofURL:    proof.Ref,
		Fields:      fields.Strings(),
	}
	_, err = call(ctx, p.opts.SinkTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.deps.Sink.Append(ctx, rec)
	})
	if err != nil {
		// the receipt is already with the subscriber
		out.Err = common.SinkError("append operation record", err)
		log.Error("pipeline.sink.failed", "state", out.State, "error", err)
		return out
	}
	out.advance(constants.StateRecorded)
	out.advance(constants.StateDone)

	log.Info("pipeline.done", "receipt_url", out.ReceiptURL, "fields", len(fields))
	return out
}

// Prompt answers a message without an attachment. The ledger is not touched.
func (p *Pipeline) Prompt(ctx context.Context, sender string) Outcome {
	sender = notify.NormalizeNumber(sender)
	var out Outcome
	out.advance(constants.StateReceived)
	if err := p.sendText(ctx, sender, PromptText); err != nil {
		out.Err = common.NotifyError("send prompt", err)
		p.logger.Error("pipeline.prompt.failed", "sender", sender, "error", err)
		return out
	}
	out.advance(constants.StatePrompted)
	out.advance(constants.StateDone)
	return out
}

func (p *Pipeline) sendText(ctx context.Context, to, body string) error {
	_, err := call(ctx, p.opts.NotifyTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.deps.Notifier.SendText(ctx, to, body)
	})
	return err
}

func (p *Pipeline) failureNotice(ctx context.Context, log *slog.Logger, sender string) {
	if !p.opts.FailureNotice {
		return
	}
	if err := p.sendText(ctx, sender, FailureText); err != nil {
		log.Warn("pipeline.failure_notice.failed", "error", err)
	}
}

// call runs fn under its own deadline.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
