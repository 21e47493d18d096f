package engine

import (
	"sync"

	"github.com/crickstats/cricsync/internal/scrape"
)

// registry is the in-process view of tracked matches. The store is the
// durable copy; the registry exists so workers never query the database
// on the hot path.
type registry struct {
	mu      sync.RWMutex
	matches map[string]scrape.Match
}

func newRegistry() *registry {
	return &registry{matches: make(map[string]scrape.Match)}
}

func (r *registry) get(matchID string) (scrape.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	return m, ok
}

// upsert merges a discovered match. Status only moves forward: a stale
// fixtures card never demotes a live or completed match. The merged
// match is returned.
func (r *registry) upsert(m scrape.Match) scrape.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.matches[m.ID]; ok {
		if existing.Status == scrape.StatusCompleted ||
			(existing.Status == scrape.StatusLive && m.Status == scrape.StatusUpcoming) {
			m.Status = existing.Status
		}
	}
	r.matches[m.ID] = m
	return m
}

func (r *registry) setStatus(matchID string, status scrape.MatchStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return
	}
	m.Status = status
	r.matches[matchID] = m
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}
