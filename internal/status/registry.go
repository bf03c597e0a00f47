// Package status tracks delivery outcomes for submissions accepted in
// async mode, so callers can poll for confirmation after the immediate
// 202 response.
package status

import (
	"sync"
	"time"
)

type State string

const (
	StatePending   State = "pending"
	StateDelivered State = "delivered"
	StateDuplicate State = "duplicate"
	StateFailed    State = "failed"
)

// Record is one submission's current delivery state.
type Record struct {
	SubmissionID string    `json:"submissionId"`
	State        State     `json:"status"`
	UpstreamID   string    `json:"id,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Registry is a TTL-bounded in-memory map of submission id to state.
// Records age out after the TTL; a lookup past that is simply unknown.
type Registry struct {
	records map[string]*Record
	mu      sync.RWMutex
	ttl     time.Duration
	stopCh  chan struct{}
}

func NewRegistry(ttl time.Duration) *Registry {
	r := &Registry{
		records: make(map[string]*Record),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go r.cleanupLoop()

	return r
}

// Set records or updates the state for a submission.
func (r *Registry) Set(submissionID string, state State, upstreamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[submissionID] = &Record{
		SubmissionID: submissionID,
		State:        state,
		UpstreamID:   upstreamID,
		UpdatedAt:    time.Now(),
	}
}

// Get looks up a submission's delivery state.
func (r *Registry) Get(submissionID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[submissionID]
	if !ok {
		return nil, false
	}
	copy := *rec
	return &copy, true
}

// Pending returns the number of submissions still awaiting delivery.
func (r *Registry) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.records {
		if rec.State == StatePending {
			count++
		}
	}
	return count
}

// cleanupLoop periodically removes expired records.
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	for id, rec := range r.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(r.records, id)
		}
	}
}

// Close stops the cleanup goroutine.
func (r *Registry) Close() {
	close(r.stopCh)
}
