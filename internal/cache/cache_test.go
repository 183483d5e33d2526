package cache

import (
	"testing"
	"time"

	"github.com/ocx/trustengine/internal/trust"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(nil, 0)
	t.Cleanup(s.Stop)
	return s
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t)
	result := trust.TrustResult{QueryID: "q1", Score: 72.5}

	s.Put("github:octocat", result, time.Minute)

	got, ok := s.Get("github:octocat")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.QueryID != "q1" {
		t.Fatalf("got wrong result: %+v", got)
	}
}

func TestGetMiss(t *testing.T) {
	s := newTestStore(t)
	if _, ok := s.Get("nothing:here"); ok {
		t.Fatal("expected miss on empty store")
	}
}

func TestExpiredEntryIsNotReturned(t *testing.T) {
	s := newTestStore(t)
	s.Put("k", trust.TrustResult{}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected expired entry to be invisible")
	}
}

func TestPutZeroTTLFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)
	s.Put("k", trust.TrustResult{}, 0)

	if _, ok := s.Get("k"); !ok {
		t.Fatal("expected entry stored with default TTL to still be present")
	}
}

func TestInvalidate(t *testing.T) {
	s := newTestStore(t)
	s.Put("k", trust.TrustResult{}, time.Minute)
	s.Invalidate("k")

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected entry to be gone after invalidate")
	}
}

func TestClearAndSize(t *testing.T) {
	s := newTestStore(t)
	s.Put("a", trust.TrustResult{}, time.Minute)
	s.Put("b", trust.TrustResult{}, time.Minute)

	if s.Size() != 2 {
		t.Fatalf("expected size 2, got %d", s.Size())
	}

	s.Clear()
	if s.Size() != 0 {
		t.Fatalf("expected size 0 after clear, got %d", s.Size())
	}
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t)
	s.Put("stale", trust.TrustResult{}, time.Millisecond)
	s.Put("fresh", trust.TrustResult{}, time.Minute)
	time.Sleep(5 * time.Millisecond)

	removed := s.SweepExpired()
	if removed != 1 {
		t.Fatalf("expected 1 entry swept, got %d", removed)
	}
	if s.Size() != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", s.Size())
	}
}

func TestStopLeavesStoreReadable(t *testing.T) {
	s := New(nil, 0)
	s.Put("k", trust.TrustResult{}, time.Minute)
	s.Stop()

	// Stop only ends the background sweeper; reading after Stop must
	// neither panic nor hang and still sees stored entries.
	if _, ok := s.Get("k"); !ok {
		t.Fatal("store must remain usable for reads after Stop")
	}
}

func TestTTLFromSignals(t *testing.T) {
	signals := []trust.Signal{
		{TTLSeconds: 600},
		{TTLSeconds: 120},
		{TTLSeconds: 0},
	}
	got := TTLFromSignals(signals, 0)
	if got != 120*time.Second {
		t.Fatalf("expected min positive TTL of 120s, got %v", got)
	}
}

func TestTTLFromSignalsEmptyDefaultsToDefaultTTL(t *testing.T) {
	if got := TTLFromSignals(nil, 0); got != DefaultTTL {
		t.Fatalf("expected DefaultTTL for no signals, got %v", got)
	}
}
