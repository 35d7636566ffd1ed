package ctgov

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/ctgov-cache/pkg/cache"
	"github.com/cuemby/ctgov-cache/pkg/fetch"
	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/merge"
	"github.com/cuemby/ctgov-cache/pkg/metrics"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/remote"
	"github.com/cuemby/ctgov-cache/pkg/store"
	"github.com/cuemby/ctgov-cache/pkg/store/filestore"
	"github.com/cuemby/ctgov-cache/pkg/store/sqlstore"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/rs/zerolog"
)

// ErrAlreadyInitialized is returned by Init when called on a Service
// that has already been initialized.
var ErrAlreadyInitialized = errors.New("ctgov: already initialized")

// ErrNotInitialized is returned by operations that require a prior
// successful Init call.
var ErrNotInitialized = errors.New("ctgov: not initialized")

// Service is the facade described in spec.md §4.G: it owns the
// durable store, the in-memory cache index, the fetch coordinator,
// and the expiry sweeper.
type Service struct {
	cfg Config

	mu          sync.Mutex
	initialized bool

	store       store.Store
	storeOwned  bool
	index       *cache.Index
	coordinator *fetch.Coordinator
	sweeper     *cache.Sweeper

	logger zerolog.Logger
}

// New creates an uninitialized Service over cfg. Call Init before use.
func New(cfg Config) *Service {
	logger := log.WithComponent("ctgov")
	if cfg.Logger != nil {
		logger = logger.Hook(callbackHook{fn: cfg.Logger})
	}
	return &Service{cfg: cfg, logger: logger}
}

// callbackHook forwards every logged event to a Config.Logger callback
// in addition to the normal zerolog output, so hosts that only want a
// printf-style sink never have to parse structured fields.
type callbackHook struct {
	fn func(format string, args ...any)
}

func (h callbackHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if msg == "" {
		return
	}
	h.fn("[%s] %s", level, msg)
}

// Init opens the durable store, restores the index, and starts the
// expiry sweeper if configured. Fails if called twice.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrAlreadyInitialized
	}

	metrics.Register()

	st, owned, err := s.openStore()
	if err != nil {
		return err
	}

	index := cache.NewIndex(st)
	if err := index.LoadFromStore(ctx); err != nil {
		if owned {
			st.Close()
		}
		return fmt.Errorf("ctgov: restoring index: %w", err)
	}

	remoteClient := remote.NewClient(s.cfg.RemoteEndpoint)
	if s.cfg.RemoteTimeout > 0 {
		remoteClient.HTTPClient.Timeout = s.cfg.RemoteTimeout
	}

	s.store = st
	s.storeOwned = owned
	s.index = index
	s.coordinator = fetch.New(index, st, remoteClient, s.cfg.MaxTrialsPerRequest, s.cfg.maxAllowedEntrySize())

	if interval := s.cfg.clampedCleanupInterval(); interval > 0 {
		s.sweeper = cache.NewSweeper(index, interval, s.cfg.clampedExpirationTimeout())
		s.sweeper.Start()
	}

	s.initialized = true
	s.logger.Info().Msg("service initialized")
	return nil
}

func (s *Service) openStore() (store.Store, bool, error) {
	if s.cfg.Store != nil {
		return s.cfg.Store, false, nil
	}
	switch s.cfg.StoreKind {
	case StoreKindFile:
		st, err := filestore.Open(s.cfg.DataDir)
		if err != nil {
			return nil, false, err
		}
		return st, true, nil
	default:
		st, err := sqlstore.Open(s.cfg.DSN)
		if err != nil {
			return nil, false, err
		}
		return st, true, nil
	}
}

// EnsureTrialsAvailable guarantees every valid, deduplicated id in ids
// that exists upstream is Ready in the cache.
func (s *Service) EnsureTrialsAvailable(ctx context.Context, ids []nct.ID) error {
	if !s.ready() {
		return ErrNotInitialized
	}
	return s.coordinator.EnsureTrialsAvailable(ctx, ids)
}

// EnsureStudiesAvailable extracts each object's NCT id via pkg/nct and
// delegates to EnsureTrialsAvailable; invalid or missing ids are
// silently dropped.
func (s *Service) EnsureStudiesAvailable(ctx context.Context, objs []*types.StudyObject) error {
	return s.EnsureTrialsAvailable(ctx, idsOf(objs))
}

// GetCachedClinicalStudy returns the study record cached for nctStr,
// or (nil, nil) if nctStr has no entry. An entry whose owning batch
// failed propagates that failure's cause.
func (s *Service) GetCachedClinicalStudy(ctx context.Context, nctStr string) (*types.StudyRecord, error) {
	if !s.ready() {
		return nil, ErrNotInitialized
	}
	id, ok := nct.Parse(nctStr)
	if !ok {
		return nil, nil
	}
	entry, ok := s.index.Get(id)
	if !ok {
		return nil, nil
	}
	return entry.Load(ctx)
}

// UpdateResearchStudy is a thin wrapper around merge.Merge, exposed so
// hosts can override merge policy for one object without going
// through the batch path.
func (s *Service) UpdateResearchStudy(target *types.StudyObject, source *types.StudyRecord) *types.StudyObject {
	return merge.Merge(target, source)
}

// UpdateResearchStudies groups objs by NCT id, ensures every key is
// available, then merges each object against its cached record.
// Studies with no extractable NCT id, or whose fetch failed, are
// returned unchanged — this operation never rejects for a partial
// failure.
func (s *Service) UpdateResearchStudies(ctx context.Context, objs []*types.StudyObject) ([]*types.StudyObject, error) {
	if !s.ready() {
		return nil, ErrNotInitialized
	}

	ids := idsOf(objs)
	if err := s.coordinator.EnsureTrialsAvailable(ctx, ids); err != nil {
		s.logger.Warn().Err(err).Msg("ensureTrialsAvailable failed for part of this batch; unaffected studies still merge")
	}

	for _, obj := range objs {
		idStr, ok := nct.ExtractFromStudy(obj)
		if !ok {
			continue
		}
		record, err := s.GetCachedClinicalStudy(ctx, idStr)
		if err != nil || record == nil {
			continue
		}
		merge.Merge(obj, record)
	}
	return objs, nil
}

// Destroy stops the sweeper and closes the store if this Service
// opened it itself.
func (s *Service) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	var err error
	if s.storeOwned {
		err = s.store.Close()
	}
	s.initialized = false
	s.logger.Info().Msg("service destroyed")
	return err
}

func (s *Service) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func idsOf(objs []*types.StudyObject) []nct.ID {
	ids := make([]nct.ID, 0, len(objs))
	for _, obj := range objs {
		idStr, ok := nct.ExtractFromStudy(obj)
		if !ok {
			continue
		}
		id, ok := nct.Parse(idStr)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
