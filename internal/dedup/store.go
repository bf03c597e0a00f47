// Package dedup provides the time-windowed submission-id cache that makes
// the proxy idempotent. A store remembers every id it has been asked about
// for one idempotency window; asking about an id records it, so two
// concurrent requests for the same id resolve to exactly one first-sight.
package dedup

import "context"

// Store is the dedup cache abstraction. The check and the record are one
// atomic operation: callers must never be able to interleave between them,
// or two concurrent requests for the same id would both pass the check.
type Store interface {
	// CheckAndRecord reports whether id was already seen inside the
	// window, recording it as seen either way.
	CheckAndRecord(ctx context.Context, id string) (bool, error)

	// Seen reports whether id is currently recorded, without recording it.
	Seen(ctx context.Context, id string) (bool, error)

	// Len returns the number of live (non-expired) entries.
	Len(ctx context.Context) (int, error)

	Close() error
}
