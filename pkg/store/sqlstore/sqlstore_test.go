package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "studies.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id, _ := nct.Parse("NCT02513394")
	require.NoError(t, s.Put(ctx, id, []byte(`{"a":1}`)))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(got))
}

func TestPutIsUpsert(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id, _ := nct.Parse("NCT02513394")
	require.NoError(t, s.Put(ctx, id, []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, id, []byte(`{"a":2}`)))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":2}`, string(got))
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	id, _ := nct.Parse("NCT00000001")
	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPutBatchAtomic(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id1, _ := nct.Parse("NCT00000001")
	id2, _ := nct.Parse("NCT00000002")
	require.NoError(t, s.PutBatch(ctx, map[nct.ID][]byte{
		id1: []byte(`{}`),
		id2: []byte(`{}`),
	}))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []nct.ID{id1, id2}, keys)
}

func TestDeleteRemovesRow(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id, _ := nct.Parse("NCT00000003")
	require.NoError(t, s.Put(ctx, id, []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, id))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReopenAppliesMigrationsIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studies.db")

	s1, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	id, _ := nct.Parse("NCT00000009")
	require.NoError(t, s1.Put(ctx, id, []byte(`{}`)))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
}
