/*
Package sqlstore implements store.Store on top of a single SQLite
database file, following spec.md §4.B option 1: a single table
studies(nct_id, study_json, created_at), upserted on write, with
applied migrations tracked in a migrations table.

It is grounded on two teacher patterns: the upsert-as-Put,
bucket-per-entity shape of the teacher's pkg/storage/boltdb.go, and the
database/sql + modernc.org/sqlite wiring used by hurttlocker-cortex's
internal/store package elsewhere in the example pack (that package
keeps its own hand-rolled migration runner; this one follows the same
idea, applying unapplied migrations in declaration order inside a
single transaction, as spec.md requires).

modernc.org/sqlite is a cgo-free driver, so it needs no local C
toolchain — the same reason the cortex example reaches for it instead
of mattn/go-sqlite3.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/store"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

type migration struct {
	name string
	sql  string
}

// declaredMigrations lists the schema migrations in the order they
// must be applied. A prior application (tracked by name in the
// migrations table) is a no-op, so this list only ever grows.
var declaredMigrations = []migration{
	{
		name: "0001_create_studies",
		sql: `CREATE TABLE IF NOT EXISTS studies (
			nct_id INTEGER PRIMARY KEY,
			study_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	},
}

// Store is the SQLite-backed store.Store implementation.
type Store struct {
	db *sql.DB
	// writeMu serializes writer transactions. modernc.org/sqlite, like
	// most embedded SQLite drivers, handles one writer at a time far
	// more gracefully when Go code enforces that discipline itself
	// rather than relying on SQLITE_BUSY retries.
	writeMu sync.Mutex
	logger  zerolog.Logger
}

// Open opens (creating if absent) the SQLite database file at path
// and applies any unapplied migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite database: %v", store.ErrStore, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: log.WithComponent("store.sql")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning migration transaction: %v", store.ErrStore, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`); err != nil {
		return fmt.Errorf("%w: creating migrations table: %v", store.ErrStore, err)
	}

	applied := make(map[string]bool)
	rows, err := tx.Query(`SELECT name FROM migrations`)
	if err != nil {
		return fmt.Errorf("%w: reading applied migrations: %v", store.ErrStore, err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("%w: scanning migration row: %v", store.ErrStore, err)
		}
		applied[name] = true
	}
	rows.Close()

	for _, m := range declaredMigrations {
		if applied[m.name] {
			continue
		}
		if _, err := tx.Exec(m.sql); err != nil {
			return fmt.Errorf("%w: applying migration %s: %v", store.ErrStore, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO migrations (name) VALUES (?)`, m.name); err != nil {
			return fmt.Errorf("%w: recording migration %s: %v", store.ErrStore, m.name, err)
		}
		s.logger.Info().Str("migration", m.name).Msg("applied store migration")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing migrations: %v", store.ErrStore, err)
	}
	return nil
}

// Put upserts a single record.
func (s *Store) Put(ctx context.Context, id nct.ID, record []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.putLocked(ctx, s.db, id, record)
}

func (s *Store) putLocked(ctx context.Context, q querier, id nct.ID, record []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO studies (nct_id, study_json, created_at) VALUES (?, ?, ?)
		ON CONFLICT(nct_id) DO UPDATE SET study_json = excluded.study_json
	`, uint32(id), string(record), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: upserting %s: %v", store.ErrStore, id, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PutBatch writes every record inside a single transaction: either all
// become visible, or none do.
func (s *Store) PutBatch(ctx context.Context, records map[nct.ID][]byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning batch transaction: %v", store.ErrStore, err)
	}
	defer tx.Rollback()

	for id, record := range records {
		if err := s.putLocked(ctx, tx, id, record); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing batch: %v", store.ErrStore, err)
	}
	return nil
}

// Get returns the record stored under id, or (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id nct.ID) ([]byte, error) {
	var studyJSON string
	err := s.db.QueryRowContext(ctx, `SELECT study_json FROM studies WHERE nct_id = ?`, uint32(id)).Scan(&studyJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", store.ErrStore, id, err)
	}
	return []byte(studyJSON), nil
}

// Delete removes id. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, id nct.ID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM studies WHERE nct_id = ?`, uint32(id)); err != nil {
		return fmt.Errorf("%w: deleting %s: %v", store.ErrStore, id, err)
	}
	return nil
}

// ListKeys enumerates every key currently persisted.
func (s *Store) ListKeys(ctx context.Context) ([]nct.ID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT nct_id FROM studies`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing keys: %v", store.ErrStore, err)
	}
	defer rows.Close()

	var ids []nct.ID
	for rows.Next() {
		var raw uint32
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scanning key: %v", store.ErrStore, err)
		}
		ids = append(ids, nct.ID(raw))
	}
	return ids, rows.Err()
}

// Stat reports id's creation/modification times, or nil if absent.
// SQLite has no modification-time metadata of its own, so both fields
// report the row's recorded created_at.
func (s *Store) Stat(ctx context.Context, id nct.ID) (*store.Stat, error) {
	var createdAtUnix int64
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM studies WHERE nct_id = ?`, uint32(id)).Scan(&createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: statting %s: %v", store.ErrStore, id, err)
	}
	t := time.Unix(createdAtUnix, 0).UTC()
	return &store.Stat{CreatedAt: t, LastModifiedAt: t}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing database: %v", store.ErrStore, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
