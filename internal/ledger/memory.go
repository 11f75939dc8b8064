package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
)

// Memory is a process-lifetime ledger. With no retention window, entries are
// never evicted.
type Memory struct {
	mu        sync.Mutex
	entries   map[fingerprint.Fingerprint]time.Time
	retention time.Duration
	now       func() time.Time
	swept     time.Time
	logger    *slog.Logger
}

type MemoryOption func(*Memory)

// WithRetention lets a fingerprint be claimed again once it is older than d.
func WithRetention(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithClock overrides the clock used for claim timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(logger *slog.Logger, opts ...MemoryOption) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{
		entries: make(map[fingerprint.Fingerprint]time.Time),
		now:     time.Now,
		logger:  logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) Contains(_ context.Context, fp fingerprint.Fingerprint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked(fp), nil
}

func (m *Memory) Insert(ctx context.Context, fp fingerprint.Fingerprint) error {
	_, err := m.Claim(ctx, fp)
	return err
}

func (m *Memory) Claim(_ context.Context, fp fingerprint.Fingerprint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liveLocked(fp) {
		return false, nil
	}
	m.sweepLocked()
	m.entries[fp] = m.now()
	m.logger.Debug("ledger.memory.claimed", "fingerprint", fp.Short(), "entries", len(m.entries))
	return true, nil
}

// Len returns the number of entries currently held. Expired entries linger
// until the next lookup or sweep.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// liveLocked must be called with mu held; it drops fp if its window has passed.
func (m *Memory) liveLocked(fp fingerprint.Fingerprint) bool {
	at, ok := m.entries[fp]
	if !ok {
		return false
	}
	if m.retention > 0 && m.now().Sub(at) >= m.retention {
		delete(m.entries, fp)
		return false
	}
	return true
}

// sweepLocked drops every expired entry, at most once per retention window so
// a claim stays amortized O(1).
func (m *Memory) sweepLocked() {
	if m.retention <= 0 {
		return
	}
	now := m.now()
	if now.Sub(m.swept) < m.retention {
		return
	}
	m.swept = now
	before := len(m.entries)
	for fp, at := range m.entries {
		if now.Sub(at) >= m.retention {
			delete(m.entries, fp)
		}
	}
	if n := before - len(m.entries); n > 0 {
		m.logger.Debug("ledger.memory.swept", "expired", n, "entries", len(m.entries))
	}
}
