// Package syncer reconciles fresh snapshots against stored state.
package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/metrics"
	"github.com/crickstats/cricsync/internal/scrape"
)

// Result of one reconcile.
type Result string

// Reconcile results. Unchanged performs no write at all, which is the
// idempotence guarantee: writing the same payload twice leaves history
// length and the latest pointer untouched.
const (
	Written   Result = "written"
	Unchanged Result = "unchanged"
)

// Writer reconciles snapshots into the snapshot store and notifies
// downstream consumers of writes.
type Writer struct {
	store     scrape.SnapshotStore
	publisher scrape.Publisher
	topic     string
	logger    *zap.Logger
}

// New constructs a Writer. The publisher may be nil; publish failures are
// logged, never surfaced, since storage is the source of truth.
func New(store scrape.SnapshotStore, publisher scrape.Publisher, topic string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, publisher: publisher, topic: topic, logger: logger}
}

// Reconcile writes the snapshot if its content differs from the stored
// latest. History-bearing sections append and move the latest pointer in
// one atomic operation; low-churn sections overwrite latest in place.
func (w *Writer) Reconcile(ctx context.Context, snap scrape.SectionSnapshot) (Result, error) {
	latest, err := w.store.Latest(ctx, snap.MatchID, snap.Section)
	if err != nil {
		return "", scrape.NewStorageError(err)
	}

	if latest != nil && latest.Fingerprint == snap.Fingerprint {
		metrics.ObserveReconcile(string(snap.Section), string(Unchanged))
		return Unchanged, nil
	}

	if snap.Section.HasHistory() {
		err = w.store.AppendHistory(ctx, snap)
	} else {
		err = w.store.ReplaceLatest(ctx, snap)
	}
	if err != nil {
		return "", scrape.NewStorageError(err)
	}

	metrics.ObserveReconcile(string(snap.Section), string(Written))
	w.publish(ctx, snap)
	return Written, nil
}

func (w *Writer) publish(ctx context.Context, snap scrape.SectionSnapshot) {
	if w.publisher == nil || w.topic == "" {
		return
	}
	event := map[string]any{
		"event_id":    uuid.NewString(),
		"match_id":    snap.MatchID,
		"section":     string(snap.Section),
		"fingerprint": snap.Fingerprint,
		"scraped_at":  snap.ScrapedAt.Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.topic, event); err != nil {
		w.logger.Warn("snapshot event publish failed",
			zap.String("match_id", snap.MatchID),
			zap.String("section", string(snap.Section)),
			zap.Error(err),
		)
	}
}
