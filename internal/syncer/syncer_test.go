package syncer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventsmem "github.com/crickstats/cricsync/internal/events/memory"
	"github.com/crickstats/cricsync/internal/hash/sha256"
	"github.com/crickstats/cricsync/internal/scrape"
	"github.com/crickstats/cricsync/internal/storage/memory"
	"github.com/crickstats/cricsync/internal/syncer"
)

func snapshot(t *testing.T, section scrape.Section, payload scrape.Payload, at time.Time) scrape.SectionSnapshot {
	t.Helper()
	fp, err := sha256.New().Fingerprint(payload)
	require.NoError(t, err)
	return scrape.SectionSnapshot{
		MatchID:     "m-7",
		Section:     section,
		Payload:     payload,
		Fingerprint: fp,
		ScrapedAt:   at,
	}
}

func TestReconcileWritesNewSnapshot(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w := syncer.New(store, nil, "", nil)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	res, err := w.Reconcile(context.Background(), snapshot(t, scrape.SectionLive, scrape.LivePayload{Score: "10/0"}, at))
	require.NoError(t, err)
	assert.Equal(t, syncer.Written, res)

	latest, err := store.Latest(context.Background(), "m-7", scrape.SectionLive)
	require.NoError(t, err)
	require.NotNil(t, latest)

	history, err := store.History(context.Background(), "m-7", scrape.SectionLive)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w := syncer.New(store, nil, "", nil)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	payload := scrape.LivePayload{Score: "88/2 (10)"}

	res, err := w.Reconcile(context.Background(), snapshot(t, scrape.SectionLive, payload, at))
	require.NoError(t, err)
	require.Equal(t, syncer.Written, res)

	// Same content scraped again later: no write at all.
	res, err = w.Reconcile(context.Background(), snapshot(t, scrape.SectionLive, payload, at.Add(30*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, syncer.Unchanged, res)

	history, err := store.History(context.Background(), "m-7", scrape.SectionLive)
	require.NoError(t, err)
	assert.Len(t, history, 1, "unchanged reconcile must not grow history")

	latest, err := store.Latest(context.Background(), "m-7", scrape.SectionLive)
	require.NoError(t, err)
	assert.Equal(t, at, latest.ScrapedAt, "unchanged reconcile must not move the latest pointer")
}

func TestReconcileAppendsDistinctVersions(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w := syncer.New(store, nil, "", nil)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	scores := []string{"10/0 (2)", "24/1 (4)", "51/1 (7)"}
	for i, score := range scores {
		_, err := w.Reconcile(context.Background(),
			snapshot(t, scrape.SectionLive, scrape.LivePayload{Score: score}, at.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	history, err := store.History(context.Background(), "m-7", scrape.SectionLive)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].ScrapedAt.Before(history[i].ScrapedAt), "history must stay in write order")
	}
}

func TestReconcileLowChurnSectionKeepsNoHistory(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w := syncer.New(store, nil, "", nil)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	_, err := w.Reconcile(context.Background(),
		snapshot(t, scrape.SectionInfo, scrape.InfoPayload{Venue: "Eden Gardens"}, at))
	require.NoError(t, err)
	_, err = w.Reconcile(context.Background(),
		snapshot(t, scrape.SectionInfo, scrape.InfoPayload{Venue: "Eden Gardens", Toss: "India chose to bowl"}, at.Add(time.Hour)))
	require.NoError(t, err)

	history, err := store.History(context.Background(), "m-7", scrape.SectionInfo)
	require.NoError(t, err)
	assert.Empty(t, history)

	latest, err := store.Latest(context.Background(), "m-7", scrape.SectionInfo)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Contains(t, string(latest.Payload), "India chose to bowl")
}

func TestReconcilePublishesWrites(t *testing.T) {
	t.Parallel()

	pub := eventsmem.New()
	w := syncer.New(memory.New(), pub, "snapshots", nil)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	payload := scrape.LivePayload{Score: "10/0"}

	_, err := w.Reconcile(context.Background(), snapshot(t, scrape.SectionLive, payload, at))
	require.NoError(t, err)
	_, err = w.Reconcile(context.Background(), snapshot(t, scrape.SectionLive, payload, at.Add(time.Minute)))
	require.NoError(t, err)

	msgs := pub.Messages()
	require.Len(t, msgs, 1, "only writes publish events")
	assert.Equal(t, "snapshots", msgs[0].Topic)

	event, ok := msgs[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m-7", event["match_id"])
	assert.Equal(t, "live", event["section"])
	assert.NotEmpty(t, event["event_id"])
}
