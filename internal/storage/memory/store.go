// Package memory provides storage implementations for local development
// and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/crickstats/cricsync/internal/scrape"
)

// Store implements scrape.Store in process memory.
type Store struct {
	mu      sync.RWMutex
	matches map[string]scrape.Match
	latest  map[scrape.JobKey]scrape.StoredSnapshot
	history map[scrape.JobKey][]scrape.StoredSnapshot
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		matches: make(map[string]scrape.Match),
		latest:  make(map[scrape.JobKey]scrape.StoredSnapshot),
		history: make(map[scrape.JobKey][]scrape.StoredSnapshot),
	}
}

// UpsertMatch inserts or refreshes a match. Status only moves forward.
func (s *Store) UpsertMatch(_ context.Context, m scrape.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.matches[m.ID]; ok {
		if existing.Status == scrape.StatusCompleted ||
			(existing.Status == scrape.StatusLive && m.Status == scrape.StatusUpcoming) {
			m.Status = existing.Status
		}
	}
	s.matches[m.ID] = m
	return nil
}

// GetMatch returns a match by ID, or nil when unknown.
func (s *Store) GetMatch(_ context.Context, matchID string) (*scrape.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ListMatches returns every known match ordered by start time.
func (s *Store) ListMatches(_ context.Context) ([]scrape.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]scrape.Match, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartTime.Before(matches[j].StartTime)
	})
	return matches, nil
}

// SetStatus updates a match's lifecycle state.
func (s *Store) SetStatus(_ context.Context, matchID string, status scrape.MatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return fmt.Errorf("unknown match %q", matchID)
	}
	m.Status = status
	s.matches[matchID] = m
	return nil
}

// Latest returns the stored latest snapshot, or nil when none exists.
func (s *Store) Latest(_ context.Context, matchID string, section scrape.Section) (*scrape.StoredSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[scrape.JobKey{MatchID: matchID, Section: section}]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// ReplaceLatest overwrites the latest snapshot for a low-churn section.
func (s *Store) ReplaceLatest(_ context.Context, snap scrape.SectionSnapshot) error {
	stored, err := toStored(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[scrape.JobKey{MatchID: snap.MatchID, Section: snap.Section}] = stored
	return nil
}

// AppendHistory appends a history entry and updates latest atomically
// (under one lock).
func (s *Store) AppendHistory(_ context.Context, snap scrape.SectionSnapshot) error {
	stored, err := toStored(snap)
	if err != nil {
		return err
	}
	key := scrape.JobKey{MatchID: snap.MatchID, Section: snap.Section}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[key] = append(s.history[key], stored)
	s.latest[key] = stored
	return nil
}

// History returns the append-only history in insertion order.
func (s *Store) History(_ context.Context, matchID string, section scrape.Section) ([]scrape.StoredSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[scrape.JobKey{MatchID: matchID, Section: section}]
	out := make([]scrape.StoredSnapshot, len(entries))
	copy(out, entries)
	return out, nil
}

// Document assembles the logical (match, section) storage document.
func (s *Store) Document(ctx context.Context, matchID string, section scrape.Section) (*scrape.SectionDocument, error) {
	latest, err := s.Latest(ctx, matchID, section)
	if err != nil || latest == nil {
		return nil, err
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

func toStored(snap scrape.SectionSnapshot) (scrape.StoredSnapshot, error) {
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return scrape.StoredSnapshot{}, fmt.Errorf("marshal payload: %w", err)
	}
	return scrape.StoredSnapshot{
		MatchID:     snap.MatchID,
		Section:     snap.Section,
		Payload:     payload,
		Fingerprint: snap.Fingerprint,
		ScrapedAt:   snap.ScrapedAt,
	}, nil
}
