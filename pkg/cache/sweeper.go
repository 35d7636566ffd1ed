package cache

import (
	"context"
	"time"

	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/metrics"
	"github.com/rs/zerolog"
)

// Sweeper periodically removes entries idle beyond a configured
// timeout (spec.md §4.E). Its Start/Stop/run shape is adapted directly
// from the teacher's pkg/reconciler.Reconciler ticker loop.
type Sweeper struct {
	index *Index

	interval time.Duration
	timeout  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
	logger zerolog.Logger
}

// NewSweeper creates a sweeper over index. interval and timeout are
// assumed already clamped by the caller (pkg/ctgov applies spec.md
// §4.E's [60_000, 2^31-1] / floor-1000ms clamps).
func NewSweeper(index *Index, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		index:    index,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   log.WithComponent("sweeper"),
	}
}

// Start begins the sweep loop. A zero or disabled interval (checked by
// the caller before constructing the sweeper) means Start is simply
// never called.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop ends the sweep loop and blocks until run has returned, so a
// sweep already in progress finishes before Stop does. pkg/ctgov's
// Destroy relies on this to close the store only after the last sweep
// is done.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Dur("timeout", s.timeout).Msg("expiry sweeper started")

	for {
		select {
		case <-ticker.C:
			s.sweep(context.Background())
		case <-s.stopCh:
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		}
	}
}

// sweep enumerates a snapshot of the index and removes every Ready
// entry idle beyond s.timeout. A Pending entry (createdAt still nil,
// or not yet Ready) is never a sweep candidate — it is still in
// flight, not idle.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.timeout)
	candidates := s.index.Snapshot()

	removed := 0
	for _, e := range candidates {
		if e.State() != StateReady {
			continue
		}
		if !e.LastAccessedBefore(cutoff) {
			continue
		}

		s.index.LockWriter()
		err := s.index.RemoveEntry(ctx, e.ID())
		s.index.UnlockWriter()

		if err != nil {
			s.logger.Error().Err(err).Str("nct_id", e.ID().String()).Msg("failed to remove expired entry")
			metrics.SweepErrorsTotal.Inc()
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("expiry sweep completed")
	}
	metrics.SweepCyclesTotal.Inc()
	metrics.EntriesExpiredTotal.Add(float64(removed))
}
