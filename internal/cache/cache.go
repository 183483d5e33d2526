// Package cache implements the result cache: a TTL-keyed store of
// TrustResults with a background expiry sweeper. The sweeper follows
// the same ticker+stop-channel shape the reputation package uses for
// its decay scheduler, kept tear-down-friendly so embedding tests
// never leak a goroutine that outlives the test.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ocx/trustengine/internal/trust"
)

// DefaultTTL is used when a result carries no usable signal TTL.
const DefaultTTL = 300 * time.Second

// sweepInterval is how often the background sweeper scans for expired
// entries.
const sweepInterval = 60 * time.Second

type entry struct {
	result    trust.TrustResult
	expiresAt time.Time
}

// Store is the in-memory TTL result cache, safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	stopCh     chan struct{}
	logger     *slog.Logger
	defaultTTL time.Duration
}

// New creates a Store and starts its background sweeper goroutine. A
// non-positive defaultTTL falls back to DefaultTTL.
func New(logger *slog.Logger, defaultTTL time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	s := &Store{
		entries:    make(map[string]entry),
		stopCh:     make(chan struct{}),
		logger:     logger,
		defaultTTL: defaultTTL,
	}
	go s.run()
	return s
}

// Stop gracefully terminates the background sweeper. Safe to call
// once; callers embedding a Store in short-lived tests should always
// call Stop to avoid leaking the sweeper goroutine.
func (s *Store) Stop() {
	close(s.stopCh)
}

func (s *Store) run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				s.logger.Debug("cache sweep removed expired entries", "count", n)
			}
		case <-s.stopCh:
			return
		}
	}
}

// Get returns the cached result for key, if present and unexpired.
func (s *Store) Get(key string) (trust.TrustResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return trust.TrustResult{}, false
	}
	return e.result, true
}

// Put stores a result under key with the given ttl. A zero or
// negative ttl falls back to the Store's configured default TTL.
func (s *Store) Put(key string, result trust.TrustResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{result: result, expiresAt: time.Now().Add(ttl)}
}

// Invalidate removes a single key.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear empties the cache.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// Size returns the number of entries currently stored, expired or
// not.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SweepExpired removes every entry whose TTL has elapsed and returns
// how many were removed.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// TTLFromSignals computes min(all signal TTLs, defaultTTL). Signals
// with a non-positive TTL are ignored; an empty or all-ignored signal
// set yields defaultTTL. A non-positive defaultTTL falls back to
// DefaultTTL.
func TTLFromSignals(signals []trust.Signal, defaultTTL time.Duration) time.Duration {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	min := defaultTTL
	found := false
	for _, sig := range signals {
		if sig.TTLSeconds <= 0 {
			continue
		}
		ttl := time.Duration(sig.TTLSeconds) * time.Second
		if !found || ttl < min {
			min = ttl
			found = true
		}
	}
	return min
}
