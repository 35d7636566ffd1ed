/*
Package filestore implements store.Store as one JSON file per NCT id
under a data directory (spec.md §4.B option 2).

It is grounded on the teacher's pkg/storage/boltdb.go in spirit (one
logical record in, one logical record out, an open/close lifecycle)
but adapted to flat files: writes land in a fresh temporary file and
are renamed over the final path, so a concurrent Get always observes
either the prior file or the complete new one, never a partial write —
the same atomic-visibility guarantee boltdb.go gets for free from its
transaction log.
*/
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/store"
	"github.com/rs/zerolog"
)

// Store is the filesystem-backed store.Store implementation.
type Store struct {
	dataDir string
	writeMu sync.Mutex
	logger  zerolog.Logger
}

// Open creates {dir}/data if absent and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data directory %s: %v", store.ErrStore, dataDir, err)
	}
	return &Store{dataDir: dataDir, logger: log.WithComponent("store.file")}, nil
}

func (s *Store) path(id nct.ID) string {
	return filepath.Join(s.dataDir, id.String()+".json")
}

// Put writes record to id's file via a temp-file-then-rename, so a
// concurrent Get can never observe a partially written file.
func (s *Store) Put(ctx context.Context, id nct.ID, record []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.putLocked(id, record)
}

func (s *Store) putLocked(id nct.ID, record []byte) error {
	final := s.path(id)
	tmp, err := os.CreateTemp(s.dataDir, ".tmp-"+id.String()+"-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %s: %v", store.ErrStore, id, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing temp file for %s: %v", store.ErrStore, id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing temp file for %s: %v", store.ErrStore, id, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: renaming temp file for %s: %v", store.ErrStore, id, err)
	}
	return nil
}

// PutBatch writes every record, best-effort atomically: if any write
// fails partway through, the files written so far by this call are
// removed again before the error is returned. The filesystem has no
// native multi-file transaction, so this is weaker than sqlstore's
// single-transaction guarantee: a concurrent Get can observe part of a
// batch, and a rolled-back file that replaced an older record is
// removed, not restored.
func (s *Store) PutBatch(ctx context.Context, records map[nct.ID][]byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	written := make([]nct.ID, 0, len(records))
	for id, record := range records {
		if err := s.putLocked(id, record); err != nil {
			for _, done := range written {
				os.Remove(s.path(done))
			}
			return err
		}
		written = append(written, id)
	}
	return nil
}

// Get returns the record stored under id, or (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id nct.ID) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", store.ErrStore, id, err)
	}
	return data, nil
}

// Delete removes id's file. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, id nct.ID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting %s: %v", store.ErrStore, id, err)
	}
	return nil
}

// ListKeys enumerates the data directory, skipping entries that don't
// parse as a valid NCT id.
func (s *Store) ListKeys(ctx context.Context) ([]nct.ID, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", store.ErrStore, s.dataDir, err)
	}
	var ids []nct.ID
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		id, ok := nct.Parse(name)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Stat reports id's file's creation/modification times, or nil if
// absent. Go's os.FileInfo exposes only modification time portably,
// so both fields report it.
func (s *Store) Stat(ctx context.Context, id nct.ID) (*store.Stat, error) {
	info, err := os.Stat(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: statting %s: %v", store.ErrStore, id, err)
	}
	mtime := info.ModTime()
	return &store.Stat{CreatedAt: mtime, LastModifiedAt: mtime}, nil
}

// Close is a no-op; the filesystem backend holds no persistent handle.
func (s *Store) Close() error {
	return nil
}

var _ store.Store = (*Store)(nil)
