// Package archive captures the raw DOM of structural scrape failures so
// selector drift can be diagnosed from the artifact, not re-scraped.
package archive

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/scrape"
)

// Archiver writes failure DOM captures to a blob store. Archival is best
// effort: a failed upload is logged and dropped, never surfaced to the
// retry path.
type Archiver struct {
	blobs  scrape.BlobStore
	clock  scrape.Clock
	logger *zap.Logger
}

// New constructs an Archiver.
func New(blobs scrape.BlobStore, clock scrape.Clock, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{blobs: blobs, clock: clock, logger: logger}
}

// ArchiveFailure stores the DOM under match/section/timestamp.html.
func (a *Archiver) ArchiveFailure(ctx context.Context, matchID string, section scrape.Section, dom string) {
	path := fmt.Sprintf("%s/%s/%s.html",
		matchID, section, a.clock.Now().Format("20060102T150405.000Z0700"))

	uri, err := a.blobs.PutObject(ctx, path, "text/html", strings.NewReader(dom))
	if err != nil {
		a.logger.Warn("failure capture upload failed",
			zap.String("match_id", matchID),
			zap.String("section", string(section)),
			zap.Error(err),
		)
		return
	}
	a.logger.Info("structural failure DOM archived",
		zap.String("match_id", matchID),
		zap.String("section", string(section)),
		zap.String("uri", uri),
		zap.Int("bytes", len(dom)),
	)
}
