package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
)

func TestMemoryInsertThenContains(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	fp := fingerprint.Of([]byte("h1"))

	if ok, _ := m.Contains(ctx, fp); ok {
		t.Fatalf("fresh ledger contains %s", fp)
	}
	if err := m.Insert(ctx, fp); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	for i := 0; i < 3; i++ {
		if ok, _ := m.Contains(ctx, fp); !ok {
			t.Fatalf("Contains false after insert (check %d)", i)
		}
	}
}

func TestMemoryInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	fp := fingerprint.Of([]byte("same"))
	for i := 0; i < 3; i++ {
		if err := m.Insert(ctx, fp); err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestMemoryClaimOnlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	fp := fingerprint.Of([]byte("claim"))

	first, _ := m.Claim(ctx, fp)
	second, _ := m.Claim(ctx, fp)
	if !first || second {
		t.Fatalf("Claim results = %v, %v; want true, false", first, second)
	}
}

func TestMemoryClaimIsAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	fp := fingerprint.Of([]byte("race"))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Claim(ctx, fp); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("%d goroutines claimed the same fingerprint", wins)
	}
}

func TestMemoryRetentionWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(nil, WithRetention(time.Hour), WithClock(func() time.Time { return now }))
	fp := fingerprint.Of([]byte("window"))

	if ok, _ := m.Claim(ctx, fp); !ok {
		t.Fatalf("first claim failed")
	}
	now = now.Add(59 * time.Minute)
	if ok, _ := m.Claim(ctx, fp); ok {
		t.Fatalf("claimed inside retention window")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := m.Contains(ctx, fp); ok {
		t.Fatalf("entry still present after window")
	}
	if ok, _ := m.Claim(ctx, fp); !ok {
		t.Fatalf("could not reclaim after window")
	}
}

func TestMemorySweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(nil, WithRetention(time.Hour), WithClock(func() time.Time { return now }))

	for i := 0; i < 1000; i++ {
		if ok, _ := m.Claim(ctx, fingerprint.Of([]byte(fmt.Sprintf("proof-%d", i)))); !ok {
			t.Fatalf("claim %d failed", i)
		}
	}
	if n := m.Len(); n != 1000 {
		t.Fatalf("len = %d, want 1000", n)
	}

	now = now.Add(48 * time.Hour)
	if ok, _ := m.Claim(ctx, fingerprint.Of([]byte("fresh"))); !ok {
		t.Fatal("fresh claim failed")
	}
	if n := m.Len(); n != 1 {
		t.Fatalf("len = %d after sweep, want 1", n)
	}
}

func TestMemoryWithoutRetentionNeverSweeps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(nil, WithClock(func() time.Time { return now }))

	m.Claim(ctx, fingerprint.Of([]byte("a")))
	now = now.Add(24 * 365 * time.Hour)
	m.Claim(ctx, fingerprint.Of([]byte("b")))
	if n := m.Len(); n != 2 {
		t.Fatalf("len = %d, want 2", n)
	}
}
