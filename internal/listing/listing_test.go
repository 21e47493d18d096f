package listing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickstats/cricsync/internal/listing"
	"github.com/crickstats/cricsync/internal/scrape"
)

const fixturesHTML = `<html><body>
<div class="match-card" data-match-id="m-101">
  <span class="teams">India vs Australia</span>
  <span class="format">T20I</span>
  <span class="venue">Melbourne Cricket Ground</span>
  <span class="date-time">14 Mar 2026, 19:30 UTC</span>
  <span class="status">Upcoming</span>
  <a href="/match/m-101/live">Match centre</a>
</div>
<div class="match-card" data-match-id="m-102">
  <span class="teams">England vs Pakistan</span>
  <span class="format">ODI</span>
  <span class="date-time">14 Mar 2026, 10:00 UTC</span>
  <span class="status">LIVE</span>
  <a href="/match/m-102/live">Match centre</a>
</div>
<div class="match-card">
  <span class="teams">Broken card without id</span>
</div>
<div class="match-card" data-match-id="m-103">
  <span class="teams">South Africa vs New Zealand</span>
  <span class="status">NZ won by 3 wickets</span>
  <a href="/match/m-103/live">Match centre</a>
</div>
</body></html>`

func newServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchParsesMatchCards(t *testing.T) {
	t.Parallel()

	srv := newServer(t, fixturesHTML)
	l := listing.New(listing.Config{URL: srv.URL, UserAgent: "cricsync-test"}, nil)

	matches, err := l.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 3, "the card without an id is skipped")

	first := matches[0]
	assert.Equal(t, "m-101", first.ID)
	assert.Equal(t, "India", first.Team1)
	assert.Equal(t, "Australia", first.Team2)
	assert.Equal(t, "T20I", first.Format)
	assert.Equal(t, "Melbourne Cricket Ground", first.Venue)
	assert.Equal(t, scrape.StatusUpcoming, first.Status)
	assert.Equal(t, srv.URL+"/match/m-101/live", first.URL)
	assert.Equal(t, time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC), first.StartTime)

	assert.Equal(t, scrape.StatusLive, matches[1].Status)
	assert.Equal(t, scrape.StatusCompleted, matches[2].Status)
}

func TestFetchEmptyPage(t *testing.T) {
	t.Parallel()

	srv := newServer(t, "<html><body><p>No fixtures today</p></body></html>")
	l := listing.New(listing.Config{URL: srv.URL}, nil)

	matches, err := l.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFetchServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	l := listing.New(listing.Config{URL: srv.URL}, nil)
	_, err := l.Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	srv := newServer(t, fixturesHTML)
	l := listing.New(listing.Config{URL: srv.URL}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Fetch(ctx)
	assert.Error(t, err)
}
