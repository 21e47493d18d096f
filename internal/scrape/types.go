// Package scrape defines the core domain model: matches, sections,
// snapshots, and the contracts between the engine's components.
package scrape

import (
	"encoding/json"
	"time"
)

// MatchStatus is the lifecycle state of a tracked match. Status only
// moves forward, from upcoming through live to completed.
type MatchStatus string

// Match lifecycle states.
const (
	StatusUpcoming  MatchStatus = "upcoming"
	StatusLive      MatchStatus = "live"
	StatusCompleted MatchStatus = "completed"
)

// Valid reports whether the status is one of the known states.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusLive, StatusCompleted:
		return true
	}
	return false
}

// Section identifies one scrapeable region of a match page.
type Section string

// Match page sections.
const (
	SectionInfo      Section = "info"
	SectionSquads    Section = "squads"
	SectionLive      Section = "live"
	SectionScorecard Section = "scorecard"
)

// AllSections lists every section in dispatch order.
var AllSections = []Section{SectionInfo, SectionSquads, SectionLive, SectionScorecard}

// Valid reports whether the section is one of the known sections.
func (s Section) Valid() bool {
	switch s {
	case SectionInfo, SectionSquads, SectionLive, SectionScorecard:
		return true
	}
	return false
}

// HasHistory reports whether writes to this section append to a
// history log. Info and squads are low-churn and keep only the latest
// snapshot; live and scorecard keep every distinct version.
func (s Section) HasHistory() bool {
	return s == SectionLive || s == SectionScorecard
}

// Match is one tracked cricket match.
type Match struct {
	ID        string      `json:"match_id"`
	Team1     string      `json:"team1"`
	Team2     string      `json:"team2"`
	Format    string      `json:"format"`
	Venue     string      `json:"venue"`
	StartTime time.Time   `json:"start_time"`
	Status    MatchStatus `json:"status"`
	URL       string      `json:"url"`
}

// SectionSnapshot is one freshly extracted section payload, fingerprinted
// and ready for reconciliation.
type SectionSnapshot struct {
	MatchID     string
	Section     Section
	Payload     Payload
	Fingerprint string
	ScrapedAt   time.Time
}

// StoredSnapshot is the persisted form of a snapshot. The payload is
// kept as raw JSON so readers never depend on the extractor types.
type StoredSnapshot struct {
	MatchID     string          `json:"match_id"`
	Section     Section         `json:"section"`
	Payload     json.RawMessage `json:"payload"`
	Fingerprint string          `json:"fingerprint"`
	ScrapedAt   time.Time       `json:"scraped_at"`
}

// SectionDocument is the logical storage document for one (match,
// section) pair: the latest snapshot plus, for history-bearing sections,
// every distinct version in write order.
type SectionDocument struct {
	MatchID   string           `json:"match_id"`
	Section   Section          `json:"section"`
	Latest    StoredSnapshot   `json:"latest"`
	History   []StoredSnapshot `json:"history,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobKey identifies one schedulable unit of work. At most one job per
// key is ever in flight.
type JobKey struct {
	MatchID string
	Section Section
}

// JobState is the scheduler-visible state of a job.
type JobState string

// Job states.
const (
	JobPending  JobState = "pending"
	JobInFlight JobState = "in_flight"
	JobDone     JobState = "done"
	JobFailed   JobState = "failed"
)
