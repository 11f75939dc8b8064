package pipeline

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/proof-receipts/internal/extract"
	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
	"github.com/joseph-ayodele/proof-receipts/internal/ledger"
	"github.com/joseph-ayodele/proof-receipts/internal/media"
	"github.com/joseph-ayodele/proof-receipts/internal/render"
	"github.com/joseph-ayodele/proof-receipts/internal/sink"
)

type MockFetcher struct {
	FetchFunc func(ctx context.Context, loc media.Locator) (media.Blob, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, loc media.Locator) (media.Blob, error) {
	return m.FetchFunc(ctx, loc)
}

type putCall struct {
	Key         string
	Data        []byte
	ContentType string
}

type MockStore struct {
	mu      sync.Mutex
	base    string
	signed  bool
	calls   []putCall
	PutFunc func(ctx context.Context, key string) error
}

func (m *MockStore) Put(ctx context.Context, key string, data []byte, contentType string) (media.Object, error) {
	if m.PutFunc != nil {
		if err := m.PutFunc(ctx, key); err != nil {
			return media.Object{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, putCall{Key: key, Data: data, ContentType: contentType})
	ref := m.base + "/" + key
	url := ref
	if m.signed {
		url += "?X-Amz-Signature=abc"
	}
	return media.Object{Ref: ref, URL: url}, nil
}

func (m *MockStore) Calls() []putCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]putCall(nil), m.calls...)
}

// CountingLedger wraps a real ledger and counts every call.
type CountingLedger struct {
	mu        sync.Mutex
	inner     ledger.Ledger
	calls     int
	ClaimFunc func(fp fingerprint.Fingerprint) (bool, error)
}

func (c *CountingLedger) count() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *CountingLedger) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *CountingLedger) Contains(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	c.count()
	return c.inner.Contains(ctx, fp)
}

func (c *CountingLedger) Insert(ctx context.Context, fp fingerprint.Fingerprint) error {
	c.count()
	return c.inner.Insert(ctx, fp)
}

func (c *CountingLedger) Claim(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	c.count()
	if c.ClaimFunc != nil {
		return c.ClaimFunc(fp)
	}
	return c.inner.Claim(ctx, fp)
}

type MockExtractor struct {
	ExtractFunc func(ctx context.Context, blob media.Blob) (extract.Fields, error)
}

func (m *MockExtractor) Extract(ctx context.Context, blob media.Blob) (extract.Fields, error) {
	return m.ExtractFunc(ctx, blob)
}

type MockRenderer struct {
	mu         sync.Mutex
	receipts   []render.Receipt
	RenderFunc func(ctx context.Context, r render.Receipt) ([]byte, error)
}

func (m *MockRenderer) Render(ctx context.Context, r render.Receipt) ([]byte, error) {
	m.mu.Lock()
	m.receipts = append(m.receipts, r)
	m.mu.Unlock()
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, r)
	}
	return []byte("png:" + r.OperationID), nil
}

func (m *MockRenderer) Receipts() []render.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]render.Receipt(nil), m.receipts...)
}

type textCall struct{ To, Body string }

type mediaCall struct{ To, URL, Caption string }

type MockNotifier struct {
	mu            sync.Mutex
	texts         []textCall
	medias        []mediaCall
	SendTextFunc  func(to, body string) error
	SendMediaFunc func(to, url string) error
}

func (m *MockNotifier) SendText(_ context.Context, to, body string) error {
	m.mu.Lock()
	m.texts = append(m.texts, textCall{to, body})
	m.mu.Unlock()
	if m.SendTextFunc != nil {
		return m.SendTextFunc(to, body)
	}
	return nil
}

func (m *MockNotifier) SendMedia(_ context.Context, to, url, caption string) error {
	m.mu.Lock()
	m.medias = append(m.medias, mediaCall{to, url, caption})
	m.mu.Unlock()
	if m.SendMediaFunc != nil {
		return m.SendMediaFunc(to, url)
	}
	return nil
}

func (m *MockNotifier) Texts() []textCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]textCall(nil), m.texts...)
}

func (m *MockNotifier) Medias() []mediaCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mediaCall(nil), m.medias...)
}

type MockSink struct {
	mu         sync.Mutex
	records    []sink.OperationRecord
	AppendFunc func(rec sink.OperationRecord) error
}

func (m *MockSink) Append(_ context.Context, rec sink.OperationRecord) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MockSink) Records() []sink.OperationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sink.OperationRecord(nil), m.records...)
}
