package ctgov

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeUpstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServiceInitTwiceFails(t *testing.T) {
	srv := fakeUpstream(t, `{"studies":[]}`)
	svc := New(Config{
		StoreKind:      StoreKindFile,
		DataDir:        t.TempDir(),
		RemoteEndpoint: srv.URL,
	})
	require.NoError(t, svc.Init(t.Context()))
	defer svc.Destroy()

	err := svc.Init(t.Context())
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestServiceOperationsRequireInit(t *testing.T) {
	svc := New(Config{})
	_, err := svc.GetCachedClinicalStudy(t.Context(), "NCT00000001")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestServiceUpdateResearchStudiesEndToEnd(t *testing.T) {
	srv := fakeUpstream(t, `{"studies":[{"protocolSection":{
		"identificationModule":{"nctId":"NCT02513394"},
		"descriptionModule":{"briefSummary":"Example"},
		"designModule":{"studyType":"INTERVENTIONAL","phases":["PHASE3"]},
		"conditionsModule":{"conditions":["Cancer"]}
	}}]}`)

	svc := New(Config{
		StoreKind:      StoreKindFile,
		DataDir:        t.TempDir(),
		RemoteEndpoint: srv.URL,
	})
	require.NoError(t, svc.Init(t.Context()))
	defer svc.Destroy()

	obj := &types.StudyObject{
		ID: "study-1",
		Identifier: []types.Identifier{
			{System: "http://clinicaltrials.gov/", Value: "NCT02513394"},
		},
	}

	results, err := svc.UpdateResearchStudies(t.Context(), []*types.StudyObject{obj})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Example", results[0].Description)
	require.NotNil(t, results[0].Phase)
	assert.Equal(t, "phase-3", results[0].Phase.Coding[0].Code)
}

func TestServiceGetCachedClinicalStudyMissing(t *testing.T) {
	srv := fakeUpstream(t, `{"studies":[]}`)
	svc := New(Config{
		StoreKind:      StoreKindFile,
		DataDir:        t.TempDir(),
		RemoteEndpoint: srv.URL,
	})
	require.NoError(t, svc.Init(t.Context()))
	defer svc.Destroy()

	record, err := svc.GetCachedClinicalStudy(t.Context(), "NCT00000001")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestServiceRestartConsistency(t *testing.T) {
	dir := t.TempDir()
	srv := fakeUpstream(t, `{"studies":[{"protocolSection":{"identificationModule":{"nctId":"NCT00000001"}}}]}`)

	svc := New(Config{StoreKind: StoreKindFile, DataDir: dir, RemoteEndpoint: srv.URL})
	require.NoError(t, svc.Init(t.Context()))

	id1, _ := nct.Parse("NCT00000001")
	require.NoError(t, svc.EnsureTrialsAvailable(t.Context(), []nct.ID{id1}))
	require.NoError(t, svc.Destroy())

	reopened := New(Config{StoreKind: StoreKindFile, DataDir: dir, RemoteEndpoint: srv.URL})
	require.NoError(t, reopened.Init(t.Context()))
	defer reopened.Destroy()

	record, err := reopened.GetCachedClinicalStudy(t.Context(), "NCT00000001")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "NCT00000001", record.NCTID())
}

func TestServiceSQLiteBackend(t *testing.T) {
	srv := fakeUpstream(t, `{"studies":[]}`)
	svc := New(Config{
		StoreKind:      StoreKindSQLite,
		DSN:            filepath.Join(t.TempDir(), "cache.db"),
		RemoteEndpoint: srv.URL,
	})
	require.NoError(t, svc.Init(t.Context()))
	defer svc.Destroy()
}
