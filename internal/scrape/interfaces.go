package scrape

import (
	"context"
	"io"
	"time"
)

// Driver is the minimal browser surface the navigator needs. The
// chromedp session implements it; tests substitute fakes.
type Driver interface {
	// Navigate loads the URL without waiting for content stability.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until the selector is visible or the timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// ReadDOM returns the rendered document as HTML.
	ReadDOM(ctx context.Context) (string, error)
}

// Session is one leased browser tab.
type Session interface {
	Driver
	ID() string
	Close() error
}

// SessionPool hands out browser sessions under a capacity bound.
type SessionPool interface {
	// Acquire leases a session, launching one if capacity allows. It
	// blocks until a session frees up, the acquire timeout elapses, or
	// the context is canceled.
	Acquire(ctx context.Context) (Session, error)
	// Release returns a healthy session for reuse.
	Release(s Session)
	// Discard drops an unusable session so a replacement can launch.
	Discard(s Session)
	// Close shuts the pool down.
	Close()
}

// SnapshotStore persists section snapshots.
type SnapshotStore interface {
	// Latest returns the stored latest snapshot, or nil when none exists.
	Latest(ctx context.Context, matchID string, section Section) (*StoredSnapshot, error)
	// ReplaceLatest overwrites the latest snapshot for a low-churn section.
	ReplaceLatest(ctx context.Context, snap SectionSnapshot) error
	// AppendHistory appends a history entry and moves the latest pointer
	// in one atomic operation.
	AppendHistory(ctx context.Context, snap SectionSnapshot) error
	// History returns the append-only history in write order.
	History(ctx context.Context, matchID string, section Section) ([]StoredSnapshot, error)
	// Document assembles the logical (match, section) storage document,
	// or nil when the section has never been written.
	Document(ctx context.Context, matchID string, section Section) (*SectionDocument, error)
}

// MatchStore persists the match registry.
type MatchStore interface {
	// UpsertMatch inserts or refreshes a match. Status only moves forward.
	UpsertMatch(ctx context.Context, m Match) error
	// GetMatch returns a match by ID, or nil when unknown.
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	// ListMatches returns every known match ordered by start time.
	ListMatches(ctx context.Context) ([]Match, error)
	// SetStatus updates a match's lifecycle state.
	SetStatus(ctx context.Context, matchID string, status MatchStatus) error
}

// Store combines match and snapshot persistence.
type Store interface {
	MatchStore
	SnapshotStore
}

// Publisher notifies downstream consumers of written snapshots.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes opaque artifacts, such as failure DOM captures.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Hasher computes content fingerprints for change detection.
type Hasher interface {
	Fingerprint(p Payload) (string, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}
