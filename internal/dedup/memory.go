package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/formrelay-systems/formrelay/internal/metrics"
)

// MemoryStore is the default process-local backend: a mutex-guarded map
// from submission id to first-seen time. Entries expire lazily on access
// and eagerly on a periodic sweep; nothing survives a process restart,
// which is an accepted property of the deployment model, not a bug.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
	stopCh  chan struct{}
}

// NewMemoryStore creates a store with the given idempotency window.
// sweepInterval bounds how long expired entries can linger; pass 0 to
// disable the background sweep (entries still expire lazily).
func NewMemoryStore(window, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		window:  window,
		stopCh:  make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}

	return s
}

// CheckAndRecord implements Store. The whole check-then-insert runs under
// one lock so concurrent requests for the same id observe exactly one
// first-sight.
func (s *MemoryStore) CheckAndRecord(_ context.Context, id string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if seenAt, ok := s.entries[id]; ok && now.Sub(seenAt) < s.window {
		return true, nil
	}

	// New id, or an expired entry being reused: either way this is a
	// fresh sighting.
	s.entries[id] = now
	return false, nil
}

// Seen implements Store.
func (s *MemoryStore) Seen(_ context.Context, id string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	seenAt, ok := s.entries[id]
	return ok && now.Sub(seenAt) < s.window, nil
}

// Len implements Store. Only live entries count.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, seenAt := range s.entries {
		if now.Sub(seenAt) < s.window {
			n++
		}
	}
	return n, nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	close(s.stopCh)
	return nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seenAt := range s.entries {
		if now.Sub(seenAt) >= s.window {
			delete(s.entries, id)
		}
	}
	metrics.DedupEntries.Set(float64(len(s.entries)))
}
