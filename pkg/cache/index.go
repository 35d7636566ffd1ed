package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/metrics"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/store"
	"github.com/rs/zerolog"
)

// Index is the in-memory map of NCT id to Entry (spec.md §4.C
// invariant 1: at most one live entry per id). See doc.go for its
// two-lock discipline.
type Index struct {
	dataMu sync.RWMutex
	entries map[nct.ID]*Entry

	writerMu sync.Mutex

	store  store.Store
	logger zerolog.Logger
}

// NewIndex creates an empty index backed by st.
func NewIndex(st store.Store) *Index {
	return &Index{
		entries: make(map[nct.ID]*Entry),
		store:   st,
		logger:  log.WithComponent("cache"),
	}
}

// Get returns the live entry for id, if any. Non-blocking against any
// in-flight writer transaction.
func (ix *Index) Get(id nct.ID) (*Entry, bool) {
	ix.dataMu.RLock()
	defer ix.dataMu.RUnlock()
	e, ok := ix.entries[id]
	return e, ok
}

// Keys returns a snapshot of every id currently indexed.
func (ix *Index) Keys() []nct.ID {
	ix.dataMu.RLock()
	defer ix.dataMu.RUnlock()
	ids := make([]nct.ID, 0, len(ix.entries))
	for id := range ix.entries {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns every entry currently indexed, for the expiry
// sweeper's enumeration pass.
func (ix *Index) Snapshot() []*Entry {
	ix.dataMu.RLock()
	defer ix.dataMu.RUnlock()
	out := make([]*Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	return out
}

// LockWriter acquires the index's writer mutex, serializing the
// sequence of "durable write, then index mutation" across the fetch
// coordinator and the expiry sweeper.
func (ix *Index) LockWriter() { ix.writerMu.Lock() }

// UnlockWriter releases the writer mutex acquired by LockWriter.
func (ix *Index) UnlockWriter() { ix.writerMu.Unlock() }

// GetOrInsertPending returns the existing entry for id if one is
// already indexed; otherwise it creates and indexes a new Pending
// entry and returns it with created=true. This single map operation is
// what gives concurrent callers requesting the same uncached id
// single-flight behavior (spec.md §4.D): only the caller that observes
// created=true goes on to issue the remote fetch.
func (ix *Index) GetOrInsertPending(id nct.ID) (entry *Entry, created bool) {
	ix.dataMu.Lock()
	defer ix.dataMu.Unlock()
	if e, ok := ix.entries[id]; ok {
		return e, false
	}
	e := newPendingEntry(id, ix.store)
	ix.entries[id] = e
	return e, true
}

// Set indexes e under id, replacing any prior entry. Callers mutating
// the index as part of a write transaction should hold the writer
// mutex across the whole transaction.
func (ix *Index) Set(id nct.ID, e *Entry) {
	ix.dataMu.Lock()
	defer ix.dataMu.Unlock()
	ix.entries[id] = e
}

// RemoveEntry detaches id from the index, then deletes its backing
// store record (spec.md §4.E: "the entry is first detached from the
// index, then remove() is awaited"). It returns nil if id was not
// indexed.
func (ix *Index) RemoveEntry(ctx context.Context, id nct.ID) error {
	ix.dataMu.Lock()
	e, ok := ix.entries[id]
	delete(ix.entries, id)
	ix.dataMu.Unlock()
	if !ok {
		return nil
	}
	metrics.EntriesTotal.WithLabelValues(stateLabel(e.State())).Dec()
	return e.Remove(ctx)
}

// LoadFromStore restores the index from every key already persisted in
// st, used by the service facade's init (spec.md §4.G, invariant 6:
// "every key in the store has an entry" after a clean init).
func (ix *Index) LoadFromStore(ctx context.Context) error {
	ids, err := ix.store.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("cache: restoring index: %w", err)
	}
	for _, id := range ids {
		stat, err := ix.store.Stat(ctx, id)
		if err != nil {
			return fmt.Errorf("cache: statting %s during restore: %w", id, err)
		}
		if stat == nil {
			continue // deleted between ListKeys and Stat; not a restore failure
		}
		ix.Set(id, newReadyEntry(id, ix.store, stat.CreatedAt))
	}
	return nil
}
