package experience

import (
	"context"
)

// EvictRetainFraction is the share of capacity retained when eviction runs:
// the newest floor(max*0.8) records survive, the oldest 20% are dropped.
const EvictRetainFraction = 0.8

// retainCount returns how many records survive an eviction for the given
// capacity.
func retainCount(max int) int {
	return int(float64(max) * EvictRetainFraction)
}

// Store is an append-only log of task experiences with bounded retention.
//
// Reads degrade to empty results on storage failure; writes and deletes
// surface ErrStore-wrapped errors. Every stored record has a unique ID, and
// no record is dropped except via Delete, ClearAll, or eviction.
type Store interface {
	// Initialize is idempotent and never surfaces an error to the caller;
	// it ensures the aggregate stats record exists. Stats are advisory, so
	// silent failure here is acceptable.
	Initialize(ctx context.Context)

	// Store appends one record, evicting the oldest 20% first when the
	// store is at capacity, and recomputes aggregate stats.
	Store(ctx context.Context, exp *Experience) error

	// GetAll returns all records in insertion order (oldest first).
	GetAll(ctx context.Context) []Experience

	// GetByID returns the matching record or ErrNotFound. Absence is a
	// valid outcome, not a failure.
	GetByID(ctx context.Context, id string) (*Experience, error)

	// Search returns records whose task description, input, or output
	// contains query as a case-insensitive substring, in store order.
	Search(ctx context.Context, query string) []Experience

	// FilterByModel returns records with an exact model match.
	FilterByModel(ctx context.Context, model string) []Experience

	// FilterByMode returns records with an exact mode match.
	FilterByMode(ctx context.Context, mode Mode) []Experience

	// Delete removes the record and recomputes stats. Deleting a missing
	// ID is not an error.
	Delete(ctx context.Context, id string) error

	// ClearAll removes every record, resets stats, and stamps the cleanup
	// time.
	ClearAll(ctx context.Context) error

	// SuccessRate returns (successful, failed, rate) where rate is
	// 100*successful/total, and 0 when the store is empty.
	SuccessRate(ctx context.Context) (successful, failed int, rate float64)

	// Stats returns the aggregate stats record.
	Stats(ctx context.Context) Stats

	// Export serializes the full record set to a JSON document for backup.
	Export(ctx context.Context) (string, error)

	// Close releases underlying resources.
	Close() error
}
