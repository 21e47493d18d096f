package scrape

import "strings"

// Payload is a parsed section body. Concrete payloads are plain structs;
// their JSON encoding is both the stored form and the fingerprint input.
type Payload interface {
	PayloadSection() Section
}

// TeamInfo names the two sides of a match.
type TeamInfo struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// InfoPayload is the match-info section: fixtures metadata that rarely
// changes once published.
type InfoPayload struct {
	Teams   TeamInfo `json:"teams"`
	Series  string   `json:"series,omitempty"`
	Format  string   `json:"format,omitempty"`
	Venue   string   `json:"venue,omitempty"`
	Date    string   `json:"date,omitempty"`
	Time    string   `json:"time,omitempty"`
	Toss    string   `json:"toss,omitempty"`
	Umpires []string `json:"umpires,omitempty"`
}

// PayloadSection implements Payload.
func (InfoPayload) PayloadSection() Section { return SectionInfo }

// SquadPlayer is one named player in a squad list.
type SquadPlayer struct {
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Captain      bool   `json:"captain,omitempty"`
	Wicketkeeper bool   `json:"wicketkeeper,omitempty"`
}

// TeamSquad is one team's named squad.
type TeamSquad struct {
	Name    string        `json:"name"`
	Players []SquadPlayer `json:"players"`
}

// SquadsPayload is the squads section.
type SquadsPayload struct {
	Home TeamSquad `json:"home"`
	Away TeamSquad `json:"away"`
}

// PayloadSection implements Payload.
func (SquadsPayload) PayloadSection() Section { return SectionSquads }

// Batter is one batting line, live or scorecard.
type Batter struct {
	Name       string `json:"name"`
	Dismissal  string `json:"dismissal,omitempty"`
	Runs       string `json:"runs,omitempty"`
	Balls      string `json:"balls,omitempty"`
	Fours      string `json:"fours,omitempty"`
	Sixes      string `json:"sixes,omitempty"`
	StrikeRate string `json:"strike_rate,omitempty"`
}

// Bowler is one bowling line, live or scorecard.
type Bowler struct {
	Name    string `json:"name"`
	Overs   string `json:"overs,omitempty"`
	Maidens string `json:"maidens,omitempty"`
	Runs    string `json:"runs,omitempty"`
	Wickets string `json:"wickets,omitempty"`
	Economy string `json:"economy,omitempty"`
}

// CommentaryEntry is one ball-by-ball commentary line.
type CommentaryEntry struct {
	Text      string `json:"text"`
	Over      string `json:"over,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// LivePayload is the live section: the current state of play.
type LivePayload struct {
	CurrentInnings  string            `json:"current_innings,omitempty"`
	Score           string            `json:"score,omitempty"`
	RunRate         string            `json:"run_rate,omitempty"`
	RequiredRunRate string            `json:"required_run_rate,omitempty"`
	LastWicket      string            `json:"last_wicket,omitempty"`
	Partnership     string            `json:"partnership,omitempty"`
	MatchStatus     string            `json:"match_status,omitempty"`
	RecentBalls     []string          `json:"recent_balls,omitempty"`
	Batters         []Batter          `json:"batters,omitempty"`
	Bowlers         []Bowler          `json:"bowlers,omitempty"`
	Commentary      []CommentaryEntry `json:"commentary,omitempty"`
}

// PayloadSection implements Payload.
func (LivePayload) PayloadSection() Section { return SectionLive }

// Innings is one innings block of a scorecard.
type Innings struct {
	Team          string   `json:"team"`
	Total         string   `json:"total,omitempty"`
	Overs         string   `json:"overs,omitempty"`
	Extras        string   `json:"extras,omitempty"`
	Batters       []Batter `json:"batters,omitempty"`
	Bowlers       []Bowler `json:"bowlers,omitempty"`
	FallOfWickets []string `json:"fall_of_wickets,omitempty"`
}

// ScorecardPayload is the full scorecard section.
type ScorecardPayload struct {
	Summary          string    `json:"summary,omitempty"`
	PlayerOfTheMatch string    `json:"player_of_the_match,omitempty"`
	Innings          []Innings `json:"innings"`
}

// PayloadSection implements Payload.
func (ScorecardPayload) PayloadSection() Section { return SectionScorecard }

// completedPhrases mark a match-status line as final. The page never
// exposes a machine-readable state, so the status text is matched against
// the phrases the site uses for finished matches.
var completedPhrases = []string{
	"match ended",
	"completed",
	"won by",
	"drawn",
	"abandoned",
}

// DeriveStatus infers the match lifecycle state from a fresh payload.
// Transitions are forward-only: a payload can promote upcoming to live
// or live to completed, but nothing demotes a match.
func DeriveStatus(current MatchStatus, p Payload) MatchStatus {
	if current == StatusCompleted {
		return current
	}
	live, ok := p.(LivePayload)
	if !ok {
		return current
	}

	status := strings.ToLower(live.MatchStatus)
	for _, phrase := range completedPhrases {
		if strings.Contains(status, phrase) {
			return StatusCompleted
		}
	}
	if current == StatusUpcoming && live.Score != "" {
		return StatusLive
	}
	return current
}
