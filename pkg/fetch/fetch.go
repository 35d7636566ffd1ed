package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuemby/ctgov-cache/pkg/cache"
	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/metrics"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/store"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/rs/zerolog"
)

// ErrEntryTooLarge marks a record the upstream returned whose
// marshaled size exceeds the coordinator's configured limit. The
// record is dropped rather than persisted.
var ErrEntryTooLarge = errors.New("fetch: record exceeds maxAllowedEntrySize")

// Remote is the subset of remote.Client the coordinator depends on,
// kept as an interface so tests can substitute a fake.
type Remote interface {
	FetchStudies(ctx context.Context, ids []nct.ID) ([]types.StudyRecord, error)
}

const defaultMaxTrialsPerRequest = 128

// Coordinator implements spec.md §4.D over a cache index, a durable
// store, and a remote client.
type Coordinator struct {
	index  *cache.Index
	store  store.Store
	client Remote

	maxTrialsPerRequest int
	maxEntrySize        int64

	logger zerolog.Logger
}

// New creates a Coordinator. maxTrialsPerRequest defaults to 128 when
// zero or negative (spec.md §4.D step 4). maxEntrySize
// bounds a single marshaled record's byte size (spec.md §4.G
// maxAllowedEntrySize); zero or negative disables the check.
func New(index *cache.Index, st store.Store, client Remote, maxTrialsPerRequest int, maxEntrySize int64) *Coordinator {
	if maxTrialsPerRequest <= 0 {
		maxTrialsPerRequest = defaultMaxTrialsPerRequest
	}
	return &Coordinator{
		index:               index,
		store:               st,
		client:              client,
		maxTrialsPerRequest: maxTrialsPerRequest,
		maxEntrySize:        maxEntrySize,
		logger:              log.WithComponent("fetch"),
	}
}

// EnsureTrialsAvailable guarantees that, on success, every id in ids
// that exists upstream is Ready in the cache, and every id upstream
// does not know about has no entry. Ids are already valid by type
// (pkg/ctgov drops unparsable ids at the facade boundary);
// EnsureTrialsAvailable itself removes duplicates, keeping the first
// occurrence's position.
func (c *Coordinator) EnsureTrialsAvailable(ctx context.Context, ids []nct.ID) error {
	ordered := dedupe(ids)

	misses := make([]nct.ID, 0, len(ordered))
	for _, id := range ordered {
		_, created := c.index.GetOrInsertPending(id)
		if created {
			misses = append(misses, id)
		}
	}

	hits := len(ordered) - len(misses)
	metrics.CacheHitsTotal.Add(float64(hits))
	metrics.CacheMissesTotal.Add(float64(len(misses)))

	for _, batch := range partition(misses, c.maxTrialsPerRequest) {
		if err := c.runBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) runBatch(ctx context.Context, batch []nct.ID) error {
	timer := metrics.NewTimer()
	records, err := c.client.FetchStudies(ctx, batch)
	timer.ObserveDuration(metrics.FetchBatchDuration)
	metrics.FetchBatchSize.Observe(float64(len(batch)))

	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues("transport").Inc()
		c.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("remote fetch failed")
		c.invalidateBatch(ctx, batch, err)
		return err
	}

	return c.reconcile(ctx, batch, records)
}

// reconcile opens the writer transaction for one batch: it persists
// every returned record, calls Found()/Ready() on the entries that
// matched, and fails any batch id the upstream did not return
// (spec.md §4.D steps 5-6, applied per batch as each batch's
// transaction completes rather than in one final pass over every
// batch — equivalent under the spec's per-batch independence and
// simpler to reason about).
func (c *Coordinator) reconcile(ctx context.Context, batch []nct.ID, records []types.StudyRecord) error {
	c.index.LockWriter()
	defer c.index.UnlockWriter()

	payload := make(map[nct.ID][]byte, len(records))
	returned := make(map[nct.ID]bool, len(records))

	for _, rec := range records {
		id, ok := nct.Parse(rec.NCTID())
		if !ok {
			c.logger.Warn().Str("nct_id", rec.NCTID()).Msg("upstream record has unparsable nct id, dropping")
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			c.logger.Error().Err(err).Str("nct_id", id.String()).Msg("marshaling fetched record")
			continue
		}
		if c.maxEntrySize > 0 && int64(len(data)) > c.maxEntrySize {
			c.logger.Warn().Str("nct_id", id.String()).Int("size", len(data)).Int64("limit", c.maxEntrySize).Msg("dropping oversized record")
			metrics.FetchFailuresTotal.WithLabelValues("oversized").Inc()
			if entry, ok := c.index.Get(id); ok && entry.State() == cache.StatePending {
				entry.Fail(ErrEntryTooLarge)
				_ = c.index.RemoveEntry(ctx, id)
			}
			continue
		}
		if entry, ok := c.index.Get(id); ok {
			entry.Found()
		}
		payload[id] = data
		returned[id] = true
	}

	if err := c.store.PutBatch(ctx, payload); err != nil {
		metrics.StoreOpsTotal.WithLabelValues("put_batch", "error").Inc()
		wrapped := fmt.Errorf("%w: %v", store.ErrStore, err)
		c.failPending(ctx, batch, wrapped)
		return wrapped
	}
	metrics.StoreOpsTotal.WithLabelValues("put_batch", "ok").Inc()

	for id := range returned {
		if entry, ok := c.index.Get(id); ok {
			entry.Ready()
		}
	}

	for _, id := range batch {
		if returned[id] {
			continue
		}
		entry, ok := c.index.Get(id)
		if !ok || entry.State() != cache.StatePending {
			continue
		}
		entry.Fail(cache.ErrNotInBundle)
		_ = c.index.RemoveEntry(ctx, id)
	}
	return nil
}

// invalidateBatch removes every still-Pending entry in batch after a
// transport/parse failure, under the writer mutex (spec.md §4.D step
// 5: "invalidate every still-Pending id in the batch").
func (c *Coordinator) invalidateBatch(ctx context.Context, batch []nct.ID, cause error) {
	c.index.LockWriter()
	defer c.index.UnlockWriter()
	c.failPending(ctx, batch, cause)
}

func (c *Coordinator) failPending(ctx context.Context, batch []nct.ID, cause error) {
	for _, id := range batch {
		entry, ok := c.index.Get(id)
		if !ok || entry.State() != cache.StatePending {
			continue
		}
		entry.Fail(cause)
		_ = c.index.RemoveEntry(ctx, id)
	}
}

func dedupe(ids []nct.ID) []nct.ID {
	seen := make(map[nct.ID]bool, len(ids))
	out := make([]nct.ID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func partition(ids []nct.ID, size int) [][]nct.ID {
	if len(ids) == 0 {
		return nil
	}
	batches := make([][]nct.ID, 0, (len(ids)+size-1)/size)
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		batches = append(batches, ids[:n])
		ids = ids[n:]
	}
	return batches
}
