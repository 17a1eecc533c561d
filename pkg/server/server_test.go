package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/trendfit/internal/pipeline"
	"github.com/elonfeng/trendfit/internal/store"
	"github.com/elonfeng/trendfit/pkg/decision"
	"github.com/elonfeng/trendfit/pkg/diversity"
	"github.com/elonfeng/trendfit/pkg/signal"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.UpsertOrganization(ctx, &signal.OrganizationProfile{
		ID: "acme", Name: "Acme", Domains: []string{"Housing"},
	}))
	require.NoError(t, s.UpsertSignals(ctx, []signal.TrendSignal{
		{ID: "rent", Title: "Rent freeze advances", Domains: []string{"Housing"},
			Momentum: signal.Momentum{DetectedAt: time.Now().Add(-time.Hour)}},
	}))

	p := pipeline.New(s, pipeline.Options{
		MaxCount:     5,
		DecisionTopN: 5,
		Selection:    diversity.DefaultConfig(),
		Decision:     decision.DefaultOptions(),
	}, logger)

	srv := httptest.NewServer(New(s, p, nil, 0, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, method, url string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRecommendThenRead(t *testing.T) {
	srv := newTestServer(t)

	var empty struct {
		Error string `json:"error"`
	}
	assert.Equal(t, http.StatusNotFound, getJSON(t, http.MethodGet, srv.URL+"/api/v1/orgs/acme/diversity", &empty))

	var run struct {
		Data pipeline.OrgReport `json:"data"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodPost, srv.URL+"/api/v1/orgs/acme/recommend", &run))
	require.Len(t, run.Data.Recommendations, 1)
	assert.Equal(t, "rent", run.Data.Recommendations[0].TrendID)

	var recs struct {
		Data  []store.Recommendation `json:"data"`
		Count int                    `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/v1/orgs/acme/recommendations", &recs))
	assert.Equal(t, 1, recs.Count)
	require.NotNil(t, recs.Data[0].Decision)

	var div struct {
		Data store.DiversityReport `json:"data"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/v1/orgs/acme/diversity", &div))
	assert.Equal(t, []string{"Housing"}, div.Data.Metrics.DomainsRepresented)
}

func TestUnknownOrg(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, http.MethodPost, srv.URL+"/api/v1/orgs/ghost/recommend", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, http.MethodGet, srv.URL+"/api/v1/orgs/ghost/recommendations", nil))
}

func TestOrgsAndSignals(t *testing.T) {
	srv := newTestServer(t)

	var orgs struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/v1/orgs", &orgs))
	assert.Equal(t, 1, orgs.Count)

	var sigs struct {
		Data []signal.TrendSignal `json:"data"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/v1/signals?limit=10", &sigs))
	require.Len(t, sigs.Data, 1)
	assert.Equal(t, "rent", sigs.Data[0].ID)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, http.MethodGet, srv.URL+"/api/v1/signals?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, http.MethodGet, srv.URL+"/api/v1/signals?limit=-1", nil))
}

func TestCollectWithoutSources(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, http.MethodPost, srv.URL+"/api/v1/collect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, http.MethodGet, srv.URL+"/api/v1/collect", nil))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	getJSON(t, http.MethodPost, srv.URL+"/api/v1/orgs/acme/recommend", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "trendfit_diversity_score"))
}
