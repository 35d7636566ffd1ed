package store

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/ctgov-cache/pkg/nct"
)

// ErrStore wraps any I/O failure surfaced by a Store implementation.
// It never represents "not found" — Get and Stat report a missing key
// by returning a nil value with a nil error.
var ErrStore = errors.New("store: I/O failure")

// Stat reports a persisted record's creation and last-modification
// times.
type Stat struct {
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// Store is a keyed bag of study record JSON blobs, keyed by NCT id.
//
// Put is atomic with respect to concurrent Get calls for the same
// key: a reader observes either the prior record or the new one, never
// a partial write. PutBatch performed by the fetch coordinator must be
// atomic as a unit — all keys become visible together, or none do.
type Store interface {
	// Put writes record under id, replacing any prior value (upsert).
	Put(ctx context.Context, id nct.ID, record []byte) error

	// PutBatch writes every (id, record) pair as a single atomic unit.
	PutBatch(ctx context.Context, records map[nct.ID][]byte) error

	// Get returns the record stored under id, or (nil, nil) if absent.
	Get(ctx context.Context, id nct.ID) ([]byte, error)

	// Delete removes id. Deleting an absent key is a no-op.
	Delete(ctx context.Context, id nct.ID) error

	// ListKeys enumerates every key currently persisted.
	ListKeys(ctx context.Context) ([]nct.ID, error)

	// Stat reports id's creation/modification times, or nil if absent.
	Stat(ctx context.Context, id nct.ID) (*Stat, error)

	// Close releases any resources held by the store.
	Close() error
}
