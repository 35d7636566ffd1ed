package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	id, _ := nct.Parse("NCT02513394")
	require.NoError(t, s.Put(ctx, id, []byte(`{"a":1}`)))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(got))
}

func TestGetMissing(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	id, _ := nct.Parse("NCT00000001")
	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListKeysSkipsInvalidNames(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	id1, _ := nct.Parse("NCT00000001")
	id2, _ := nct.Parse("NCT00000002")
	require.NoError(t, s.Put(ctx, id1, []byte(`{}`)))
	require.NoError(t, s.Put(ctx, id2, []byte(`{}`)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "notes.txt"), []byte("x"), 0o644))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []nct.ID{id1, id2}, keys)
}

func TestDeleteRemovesFile(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	id, _ := nct.Parse("NCT00000003")
	require.NoError(t, s.Put(ctx, id, []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, id))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPutBatchWritesEveryRecord(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	id1, _ := nct.Parse("NCT00000004")
	id2, _ := nct.Parse("NCT00000005")
	err = s.PutBatch(ctx, map[nct.ID][]byte{
		id1: []byte(`{}`),
		id2: []byte(`{}`),
	})
	require.NoError(t, err)

	got1, _ := s.Get(ctx, id1)
	got2, _ := s.Get(ctx, id2)
	require.NotNil(t, got1)
	require.NotNil(t, got2)
}
