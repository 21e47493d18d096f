package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickstats/cricsync/internal/api"
	"github.com/crickstats/cricsync/internal/scrape"
	"github.com/crickstats/cricsync/internal/storage/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.UpsertMatch(ctx, scrape.Match{
		ID:        "m-1",
		Team1:     "India",
		Team2:     "Australia",
		Format:    "T20",
		Status:    scrape.StatusLive,
		StartTime: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		URL:       "https://example.com/m/1",
	}))
	require.NoError(t, store.AppendHistory(ctx, scrape.SectionSnapshot{
		MatchID:     "m-1",
		Section:     scrape.SectionLive,
		Payload:     scrape.LivePayload{Score: "42/1 (6)"},
		Fingerprint: "fp-1",
		ScrapedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.AppendHistory(ctx, scrape.SectionSnapshot{
		MatchID:     "m-1",
		Section:     scrape.SectionLive,
		Payload:     scrape.LivePayload{Score: "58/1 (8)"},
		Fingerprint: "fp-2",
		ScrapedAt:   time.Date(2026, 3, 14, 10, 1, 0, 0, time.UTC),
	}))
	return store
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api.NewServer(seedStore(t), nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url) // #nosec G107 -- URL comes from the local test server.
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListMatches(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/v1/matches")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Matches []scrape.Match `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "m-1", out.Matches[0].ID)
}

func TestGetMatch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/v1/matches/m-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m scrape.Match
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, scrape.StatusLive, m.Status)
}

func TestGetMatchNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/v1/matches/ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSectionDocument(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/v1/matches/m-1/live")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc scrape.SectionDocument
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "fp-2", doc.Latest.Fingerprint)
	assert.Len(t, doc.History, 2)
}

func TestGetSectionUnknownSection(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/v1/matches/m-1/weather")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSectionNoSnapshot(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/v1/matches/m-1/scorecard")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSectionHistory(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/v1/matches/m-1/live/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		History []scrape.StoredSnapshot `json:"history"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.History, 2)
	assert.Equal(t, "fp-1", out.History[0].Fingerprint)
}

func TestGetSectionHistoryRejectedForLowChurnSection(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/v1/matches/m-1/info/history")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics") // #nosec G107
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/healthz")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
