package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/metrics"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/store"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/rs/zerolog"
)

// State is one position in an Entry's lifecycle (spec.md §4.C).
type State int

const (
	// StatePending is assigned on creation; the backing record is not
	// yet known to exist.
	StatePending State = iota
	// StateReady means the backing record has been persisted and is
	// readable through the store.
	StateReady
	// StateFailed means the batch that owned this entry could not be
	// completed; Load returns the recorded cause to every waiter.
	StateFailed
)

// ErrEntryFailed wraps the cause recorded by Fail and propagated to
// every Load call awaiting a Pending entry whose batch failed.
var ErrEntryFailed = errors.New("cache: entry failed")

// ErrNotInBundle marks an entry whose id the upstream response did not
// include. It is not caller-visible: pkg/fetch converts it into a
// quiet removal, never an error returned to EnsureTrialsAvailable's
// caller for that specific id.
var ErrNotInBundle = errors.New("cache: nct id not in upstream bundle")

// Entry is the cache's unit of per-NCT state: the pending/ready/failed
// machine described in spec.md §4.C.
type Entry struct {
	id    nct.ID
	store store.Store

	mu             sync.Mutex
	state          State
	createdAt      *time.Time
	lastAccessedAt time.Time
	waitCh         chan struct{}
	err            error

	logger zerolog.Logger
}

// stateLabel returns the EntriesTotal gauge label for s.
func stateLabel(s State) string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// newPendingEntry creates a speculative entry with createdAt left nil.
// It is inserted into the index before any remote call is made so that
// concurrent requesters for the same id observe it and share the
// await (single-flight, spec.md §4.D).
func newPendingEntry(id nct.ID, st store.Store) *Entry {
	metrics.EntriesTotal.WithLabelValues(stateLabel(StatePending)).Inc()
	return &Entry{
		id:             id,
		store:          st,
		state:          StatePending,
		lastAccessedAt: time.Now(),
		logger:         log.WithNCT(id.String()),
	}
}

// newReadyEntry creates an entry for a record already known to be
// persisted, as restored from the store at init.
func newReadyEntry(id nct.ID, st store.Store, createdAt time.Time) *Entry {
	metrics.EntriesTotal.WithLabelValues(stateLabel(StateReady)).Inc()
	return &Entry{
		id:             id,
		store:          st,
		state:          StateReady,
		createdAt:      &createdAt,
		lastAccessedAt: time.Now(),
		logger:         log.WithNCT(id.String()),
	}
}

// ID returns the entry's NCT id.
func (e *Entry) ID() nct.ID { return e.id }

// State returns the entry's current lifecycle state.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CreatedAt returns the time the coordinator confirmed this id exists
// upstream, or nil if that has not happened yet.
func (e *Entry) CreatedAt() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createdAt
}

// Found sets createdAt to now if it is still nil. It is a no-op once
// createdAt has been set.
func (e *Entry) Found() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createdAt == nil {
		now := time.Now()
		e.createdAt = &now
	}
}

// Ready transitions the entry to Ready and wakes every current and
// future waiter. Idempotent: calling it again once Ready is a no-op.
func (e *Entry) Ready() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateReady {
		return
	}
	metrics.EntriesTotal.WithLabelValues(stateLabel(e.state)).Dec()
	e.state = StateReady
	metrics.EntriesTotal.WithLabelValues(stateLabel(StateReady)).Inc()
	if e.waitCh != nil {
		close(e.waitCh)
	}
}

// Fail transitions the entry to Failed, recording cause, and rejects
// every current and future waiter with it. Idempotent.
func (e *Entry) Fail(cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateFailed {
		return
	}
	metrics.EntriesTotal.WithLabelValues(stateLabel(e.state)).Dec()
	e.state = StateFailed
	e.err = cause
	metrics.EntriesTotal.WithLabelValues(stateLabel(StateFailed)).Inc()
	if e.waitCh != nil {
		close(e.waitCh)
	}
}

// LastAccessedBefore reports whether t is strictly after the entry's
// last-accessed time (used by the expiry sweeper).
func (e *Entry) LastAccessedBefore(t time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAccessedAt.Before(t)
}

// Remove deletes the entry's backing store record. Callers are
// responsible for detaching the entry from the index first (spec.md
// §4.E): Remove only ever touches durable storage.
func (e *Entry) Remove(ctx context.Context) error {
	return e.store.Delete(ctx, e.id)
}

// Load returns the entry's study record, suspending the caller if the
// entry is still Pending until it resolves to Ready or Failed.
func (e *Entry) Load(ctx context.Context) (*types.StudyRecord, error) {
	for {
		e.mu.Lock()
		switch e.state {
		case StateReady:
			e.mu.Unlock()
			return e.readThroughStore(ctx)
		case StateFailed:
			cause := e.err
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %w", ErrEntryFailed, cause)
		default: // StatePending
			if e.waitCh == nil {
				e.waitCh = make(chan struct{})
			}
			ch := e.waitCh
			e.mu.Unlock()

			select {
			case <-ch:
				// Loop back around and re-read the now-resolved state.
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

func (e *Entry) readThroughStore(ctx context.Context) (*types.StudyRecord, error) {
	data, err := e.store.Get(ctx, e.id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.lastAccessedAt = time.Now()
	e.mu.Unlock()

	if data == nil {
		e.logger.Warn().Msg("ready entry has no backing record; treating as absent")
		return nil, nil
	}

	var record types.StudyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("cache: parsing stored record for %s: %w", e.id, err)
	}
	return &record, nil
}
