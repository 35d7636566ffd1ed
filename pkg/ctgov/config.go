package ctgov

import (
	"math"
	"time"

	"github.com/cuemby/ctgov-cache/pkg/store"
)

// StoreKind selects which durable store backend Init opens.
type StoreKind int

const (
	// StoreKindSQLite opens a single-file SQLite database (spec.md
	// §4.B option 1).
	StoreKindSQLite StoreKind = iota
	// StoreKindFile opens a one-file-per-record directory (spec.md
	// §4.B option 2).
	StoreKindFile
)

const (
	defaultExpirationTimeout   = time.Hour
	minExpirationTimeout       = time.Second
	minCleanupInterval         = time.Minute
	maxCleanupInterval         = time.Duration(math.MaxInt32) * time.Millisecond
	defaultMaxAllowedEntrySize = 128 * 1024 * 1024
)

// Config carries every tunable spec.md §4.G names.
type Config struct {
	// StoreKind selects the backend Init opens. Ignored if Store is set.
	StoreKind StoreKind
	// DSN is the SQLite database file path (StoreKindSQLite).
	DSN string
	// DataDir is the filesystem backend's root directory (StoreKindFile).
	DataDir string
	// Store, if non-nil, is used as-is and left open by Destroy — the
	// caller owns its lifecycle.
	Store store.Store

	// RemoteEndpoint overrides remote.DefaultEndpoint.
	RemoteEndpoint string
	// RemoteTimeout overrides remote.DefaultTimeout.
	RemoteTimeout time.Duration

	// MaxTrialsPerRequest bounds remote batch size; non-positive values
	// fall back to the coordinator's default of 128.
	MaxTrialsPerRequest int

	// ExpirationTimeout is the sweeper's per-entry idle TTL. Clamped to
	// a 1s floor.
	ExpirationTimeout time.Duration
	// CleanupInterval is the sweeper's tick period. Zero disables the
	// sweeper entirely; a non-zero value is clamped to
	// [60_000ms, 2^31-1 ms].
	CleanupInterval time.Duration

	// MaxAllowedEntrySize bounds a single marshaled record's byte size;
	// the fetch coordinator drops (and fails) any returned record over
	// this limit instead of persisting it. Defaults to 128 MiB.
	MaxAllowedEntrySize int64

	// Logger receives a printf-style callback for every log line this
	// package emits, mirroring spec.md §6's single logger callback.
	// Output always goes through pkg/log's global logger as well; when
	// nil, that is the only destination.
	Logger func(format string, args ...any)
}

func (c Config) clampedExpirationTimeout() time.Duration {
	if c.ExpirationTimeout <= 0 {
		return defaultExpirationTimeout
	}
	if c.ExpirationTimeout < minExpirationTimeout {
		return minExpirationTimeout
	}
	return c.ExpirationTimeout
}

func (c Config) clampedCleanupInterval() time.Duration {
	if c.CleanupInterval == 0 {
		return 0
	}
	if c.CleanupInterval < minCleanupInterval {
		return minCleanupInterval
	}
	if c.CleanupInterval > maxCleanupInterval {
		return maxCleanupInterval
	}
	return c.CleanupInterval
}

func (c Config) maxAllowedEntrySize() int64 {
	if c.MaxAllowedEntrySize <= 0 {
		return defaultMaxAllowedEntrySize
	}
	return c.MaxAllowedEntrySize
}
