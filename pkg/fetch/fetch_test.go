package fetch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cuemby/ctgov-cache/pkg/cache"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/store/filestore"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu      sync.Mutex
	calls   [][]nct.ID
	respond func(batch []nct.ID) ([]types.StudyRecord, error)
}

func (f *fakeRemote) FetchStudies(_ context.Context, ids []nct.ID) ([]types.StudyRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]nct.ID(nil), ids...))
	f.mu.Unlock()
	return f.respond(ids)
}

func newTestFixture(t *testing.T) (*cache.Index, *filestore.Store) {
	t.Helper()
	fs, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return cache.NewIndex(fs), fs
}

func recordFor(idStr string) types.StudyRecord {
	var r types.StudyRecord
	r.ProtocolSection.Identification.NCTID = idStr
	return r
}

func TestEnsureTrialsAvailableFetchesMisses(t *testing.T) {
	index, fs := newTestFixture(t)

	remote := &fakeRemote{
		respond: func(batch []nct.ID) ([]types.StudyRecord, error) {
			out := make([]types.StudyRecord, len(batch))
			for i, id := range batch {
				out[i] = recordFor(id.String())
			}
			return out, nil
		},
	}

	c := New(index, fs, remote, 128, 0)
	id1, _ := nct.Parse("NCT00000001")
	id2, _ := nct.Parse("NCT00000002")

	err := c.EnsureTrialsAvailable(t.Context(), []nct.ID{id1, id2})
	require.NoError(t, err)
	require.Len(t, remote.calls, 1)

	e1, ok := index.Get(id1)
	require.True(t, ok)
	assert.Equal(t, cache.StateReady, e1.State())
}

func TestEnsureTrialsAvailableBatchesSerially(t *testing.T) {
	index, fs := newTestFixture(t)

	remote := &fakeRemote{
		respond: func(batch []nct.ID) ([]types.StudyRecord, error) {
			out := make([]types.StudyRecord, len(batch))
			for i, id := range batch {
				out[i] = recordFor(id.String())
			}
			return out, nil
		},
	}
	c := New(index, fs, remote, 2, 0)

	id1, _ := nct.Parse("NCT00000001")
	id2, _ := nct.Parse("NCT00000002")
	id3, _ := nct.Parse("NCT00000003")

	err := c.EnsureTrialsAvailable(t.Context(), []nct.ID{id1, id2, id3})
	require.NoError(t, err)
	require.Len(t, remote.calls, 2)
	assert.Len(t, remote.calls[0], 2)
	assert.Len(t, remote.calls[1], 1)
}

func TestEnsureTrialsAvailableNotInBundle(t *testing.T) {
	index, fs := newTestFixture(t)

	id1, _ := nct.Parse("NCT00000001")
	id2, _ := nct.Parse("NCT00000002")

	remote := &fakeRemote{
		respond: func(batch []nct.ID) ([]types.StudyRecord, error) {
			return []types.StudyRecord{recordFor(id1.String())}, nil
		},
	}
	c := New(index, fs, remote, 128, 0)

	err := c.EnsureTrialsAvailable(t.Context(), []nct.ID{id1, id2})
	require.NoError(t, err)

	_, ok := index.Get(id2)
	assert.False(t, ok, "id missing from upstream bundle should be removed from the index")
}

func TestEnsureTrialsAvailableTransportFailureInvalidatesBatch(t *testing.T) {
	index, fs := newTestFixture(t)

	boom := errors.New("connection refused")
	remote := &fakeRemote{
		respond: func(batch []nct.ID) ([]types.StudyRecord, error) {
			return nil, boom
		},
	}
	c := New(index, fs, remote, 128, 0)

	id1, _ := nct.Parse("NCT00000001")
	err := c.EnsureTrialsAvailable(t.Context(), []nct.ID{id1})
	require.ErrorIs(t, err, boom)

	_, ok := index.Get(id1)
	assert.False(t, ok)
}

func TestEnsureTrialsAvailableDropsOversizedRecord(t *testing.T) {
	index, fs := newTestFixture(t)

	id1, _ := nct.Parse("NCT00000001")
	remote := &fakeRemote{
		respond: func(batch []nct.ID) ([]types.StudyRecord, error) {
			rec := recordFor(id1.String())
			rec.ProtocolSection.Description.BriefSummary = strings.Repeat("x", 1024)
			return []types.StudyRecord{rec}, nil
		},
	}
	c := New(index, fs, remote, 128, 64)

	err := c.EnsureTrialsAvailable(t.Context(), []nct.ID{id1})
	require.NoError(t, err)

	_, ok := index.Get(id1)
	assert.False(t, ok, "oversized record should be dropped rather than stored")
}

func TestEnsureTrialsAvailableSingleFlight(t *testing.T) {
	index, fs := newTestFixture(t)

	id1, _ := nct.Parse("NCT00000001")
	remote := &fakeRemote{
		respond: func(batch []nct.ID) ([]types.StudyRecord, error) {
			return []types.StudyRecord{recordFor(id1.String())}, nil
		},
	}
	c := New(index, fs, remote, 128, 0)

	require.NoError(t, c.EnsureTrialsAvailable(t.Context(), []nct.ID{id1}))
	require.NoError(t, c.EnsureTrialsAvailable(t.Context(), []nct.ID{id1}))

	assert.Len(t, remote.calls, 1, "second call should observe the existing Ready entry, not refetch")
}
