package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idOf(t *testing.T, s string) nct.ID {
	t.Helper()
	id, ok := nct.Parse(s)
	require.True(t, ok)
	return id
}

func TestFetchStudiesSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NCT00000001,NCT00000002", r.URL.Query().Get("filter.ids"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(studiesResponse{Studies: []types.StudyRecord{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	records, err := c.FetchStudies(t.Context(), []nct.ID{idOf(t, "NCT00000001"), idOf(t, "NCT00000002")})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchStudiesFollowsPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"studies":[{"protocolSection":{"identificationModule":{"nctId":"NCT00000001"}}}],"nextPageToken":"tok2"}`))
			return
		}
		w.Write([]byte(`{"studies":[{"protocolSection":{"identificationModule":{"nctId":"NCT00000002"}}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	records, err := c.FetchStudies(t.Context(), []nct.ID{idOf(t, "NCT00000001"), idOf(t, "NCT00000002")})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "NCT00000001", records[0].NCTID())
	assert.Equal(t, "NCT00000002", records[1].NCTID())
}

func TestFetchStudiesNonTwoxxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchStudies(t.Context(), []nct.ID{idOf(t, "NCT00000001")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFetchStudiesMalformedBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchStudies(t.Context(), []nct.ID{idOf(t, "NCT00000001")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestFetchStudiesEmptyInput(t *testing.T) {
	c := NewClient("http://unused.invalid")
	records, err := c.FetchStudies(t.Context(), nil)
	require.NoError(t, err)
	assert.Nil(t, records)
}
