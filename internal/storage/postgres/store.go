// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crickstats/cricsync/internal/scrape"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbPool is the pool surface the store needs; pgxmock satisfies it.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements scrape.Store on PostgreSQL.
//
// It assumes this schema:
//
//	CREATE TABLE matches (
//	    id TEXT PRIMARY KEY,
//	    team1 TEXT NOT NULL,
//	    team2 TEXT NOT NULL,
//	    format TEXT NOT NULL DEFAULT '',
//	    venue TEXT NOT NULL DEFAULT '',
//	    start_time TIMESTAMPTZ NOT NULL,
//	    status TEXT NOT NULL,
//	    url TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE section_documents (
//	    match_id TEXT NOT NULL,
//	    section TEXT NOT NULL,
//	    latest JSONB NOT NULL,
//	    fingerprint TEXT NOT NULL,
//	    scraped_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (match_id, section)
//	);
//
//	CREATE TABLE section_history (
//	    id BIGSERIAL PRIMARY KEY,
//	    match_id TEXT NOT NULL,
//	    section TEXT NOT NULL,
//	    payload JSONB NOT NULL,
//	    fingerprint TEXT NOT NULL,
//	    scraped_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX section_history_key_idx ON section_history (match_id, section, scraped_at);
type Store struct {
	pool dbPool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertMatch inserts or refreshes a match registry row. Status is only
// moved forward; a stale listing scrape can never downgrade a live match.
func (s *Store) UpsertMatch(ctx context.Context, m scrape.Match) error {
	query := `
INSERT INTO matches (id, team1, team2, format, venue, start_time, status, url, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (id) DO UPDATE SET
	team1 = EXCLUDED.team1,
	team2 = EXCLUDED.team2,
	format = EXCLUDED.format,
	venue = EXCLUDED.venue,
	start_time = EXCLUDED.start_time,
	url = EXCLUDED.url,
	status = CASE
		WHEN matches.status = 'completed' THEN matches.status
		WHEN matches.status = 'live' AND EXCLUDED.status = 'upcoming' THEN matches.status
		ELSE EXCLUDED.status
	END,
	updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query,
		m.ID, m.Team1, m.Team2, m.Format, m.Venue, m.StartTime, string(m.Status), m.URL,
	); err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}
	return nil
}

// GetMatch returns a match by ID, or nil when unknown.
func (s *Store) GetMatch(ctx context.Context, matchID string) (*scrape.Match, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, team1, team2, format, venue, start_time, status, url
FROM matches WHERE id = $1`, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return &m, nil
}

// ListMatches returns every known match ordered by start time.
func (s *Store) ListMatches(ctx context.Context) ([]scrape.Match, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, team1, team2, format, venue, start_time, status, url
FROM matches ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []scrape.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

// SetStatus updates a match's lifecycle state.
func (s *Store) SetStatus(ctx context.Context, matchID string, status scrape.MatchStatus) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE matches SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), matchID,
	); err != nil {
		return fmt.Errorf("set match status: %w", err)
	}
	return nil
}

// Latest returns the stored latest snapshot, or nil when none exists.
func (s *Store) Latest(ctx context.Context, matchID string, section scrape.Section) (*scrape.StoredSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
SELECT latest, fingerprint, scraped_at
FROM section_documents WHERE match_id = $1 AND section = $2`, matchID, string(section))

	snap := scrape.StoredSnapshot{MatchID: matchID, Section: section}
	var payload []byte
	err := row.Scan(&payload, &snap.Fingerprint, &snap.ScrapedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest: %w", err)
	}
	snap.Payload = json.RawMessage(payload)
	return &snap, nil
}

// ReplaceLatest overwrites the latest snapshot for a low-churn section.
func (s *Store) ReplaceLatest(ctx context.Context, snap scrape.SectionSnapshot) error {
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if _, err := s.pool.Exec(ctx, upsertDocumentSQL,
		snap.MatchID, string(snap.Section), payload, snap.Fingerprint, snap.ScrapedAt,
	); err != nil {
		return fmt.Errorf("replace latest: %w", err)
	}
	return nil
}

const upsertDocumentSQL = `
INSERT INTO section_documents (match_id, section, latest, fingerprint, scraped_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (match_id, section) DO UPDATE SET
	latest = EXCLUDED.latest,
	fingerprint = EXCLUDED.fingerprint,
	scraped_at = EXCLUDED.scraped_at,
	updated_at = NOW()`

// AppendHistory appends a history row and updates the latest pointer in a
// single transaction, keeping the per-document atomicity guarantee.
func (s *Store) AppendHistory(ctx context.Context, snap scrape.SectionSnapshot) error {
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
INSERT INTO section_history (match_id, section, payload, fingerprint, scraped_at)
VALUES ($1,$2,$3,$4,$5)`,
		snap.MatchID, string(snap.Section), payload, snap.Fingerprint, snap.ScrapedAt,
	); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	if _, err := tx.Exec(ctx, upsertDocumentSQL,
		snap.MatchID, string(snap.Section), payload, snap.Fingerprint, snap.ScrapedAt,
	); err != nil {
		return fmt.Errorf("update latest: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// History returns the append-only history ordered by scraped_at.
func (s *Store) History(ctx context.Context, matchID string, section scrape.Section) ([]scrape.StoredSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
SELECT payload, fingerprint, scraped_at
FROM section_history
WHERE match_id = $1 AND section = $2
ORDER BY scraped_at, id`, matchID, string(section))
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var history []scrape.StoredSnapshot
	for rows.Next() {
		snap := scrape.StoredSnapshot{MatchID: matchID, Section: section}
		var payload []byte
		if err := rows.Scan(&payload, &snap.Fingerprint, &snap.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		snap.Payload = json.RawMessage(payload)
		history = append(history, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return history, nil
}

// Document assembles the logical (match, section) storage document.
func (s *Store) Document(ctx context.Context, matchID string, section scrape.Section) (*scrape.SectionDocument, error) {
	latest, err := s.Latest(ctx, matchID, section)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	doc := &scrape.SectionDocument{
		MatchID:   matchID,
		Section:   section,
		Latest:    *latest,
		UpdatedAt: latest.ScrapedAt,
	}
	if section.HasHistory() {
		history, err := s.History(ctx, matchID, section)
		if err != nil {
			return nil, err
		}
		doc.History = history
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (scrape.Match, error) {
	var m scrape.Match
	var status string
	if err := row.Scan(&m.ID, &m.Team1, &m.Team2, &m.Format, &m.Venue, &m.StartTime, &status, &m.URL); err != nil {
		return scrape.Match{}, err
	}
	m.Status = scrape.MatchStatus(status)
	return m, nil
}
