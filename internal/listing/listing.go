// Package listing discovers matches from the fixtures page. The page is
// plain server-rendered HTML, so a lightweight HTTP collector is enough;
// browser sessions are reserved for the match pages themselves.
package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/scrape"
)

// startTimeLayout matches the fixtures page date format, e.g.
// "14 Mar 2026, 19:30 IST".
const startTimeLayout = "02 Jan 2006, 15:04 MST"

// Config controls the fixtures collector.
type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Lister fetches and parses the fixtures listing.
type Lister struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Lister.
func New(cfg Config, logger *zap.Logger) *Lister {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.SetRequestTimeout(cfg.Timeout)
	return &Lister{cfg: cfg, logger: logger, baseCollector: c}
}

// Fetch retrieves the fixtures page and returns every parseable match
// card. Malformed cards are skipped with a log line rather than failing
// the whole refresh.
func (l *Lister) Fetch(ctx context.Context) ([]scrape.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("listing fetch: %w", err)
	}

	var (
		matches  []scrape.Match
		fetchErr error
	)

	collector := l.baseCollector.Clone()
	if l.cfg.UserAgent != "" {
		collector.UserAgent = l.cfg.UserAgent
	}
	collector.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})
	collector.OnHTML(".match-card", func(e *colly.HTMLElement) {
		m, err := parseCard(e)
		if err != nil {
			l.logger.Warn("skipping fixtures card", zap.Error(err))
			return
		}
		matches = append(matches, m)
	})

	if err := collector.Visit(l.cfg.URL); err != nil {
		return nil, fmt.Errorf("visit fixtures page: %w", err)
	}
	collector.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("fetch fixtures page: %w", fetchErr)
	}
	l.logger.Debug("fixtures refreshed", zap.Int("matches", len(matches)))
	return matches, nil
}

// parseCard extracts one match from a fixtures card. The card must carry
// a match ID and both team names; everything else is optional.
func parseCard(e *colly.HTMLElement) (scrape.Match, error) {
	id := strings.TrimSpace(e.Attr("data-match-id"))
	if id == "" {
		return scrape.Match{}, fmt.Errorf("card has no match id")
	}

	teams := strings.TrimSpace(e.ChildText(".teams"))
	team1, team2, ok := splitTeams(teams)
	if !ok {
		return scrape.Match{}, fmt.Errorf("card %s: unparseable teams %q", id, teams)
	}

	m := scrape.Match{
		ID:     id,
		Team1:  team1,
		Team2:  team2,
		Format: strings.TrimSpace(e.ChildText(".format")),
		Venue:  strings.TrimSpace(e.ChildText(".venue")),
		Status: cardStatus(e.ChildText(".status")),
		URL:    e.Request.AbsoluteURL(e.ChildAttr("a", "href")),
	}
	if m.URL == "" {
		return scrape.Match{}, fmt.Errorf("card %s: no match page link", id)
	}

	if raw := strings.TrimSpace(e.ChildText(".date-time")); raw != "" {
		start, err := time.Parse(startTimeLayout, raw)
		if err != nil {
			return scrape.Match{}, fmt.Errorf("card %s: bad start time %q: %w", id, raw, err)
		}
		m.StartTime = start.UTC()
	}
	return m, nil
}

func splitTeams(teams string) (string, string, bool) {
	for _, sep := range []string{" vs ", " Vs ", " VS ", " v "} {
		if t1, t2, ok := strings.Cut(teams, sep); ok {
			return strings.TrimSpace(t1), strings.TrimSpace(t2), true
		}
	}
	return "", "", false
}

// cardStatus maps the card's status badge onto a lifecycle state. Cards
// without a recognizable badge default to upcoming; the live extractor
// promotes them once play starts.
func cardStatus(raw string) scrape.MatchStatus {
	status := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(status, "live"):
		return scrape.StatusLive
	case strings.Contains(status, "won"),
		strings.Contains(status, "ended"),
		strings.Contains(status, "drawn"),
		strings.Contains(status, "abandoned"):
		return scrape.StatusCompleted
	default:
		return scrape.StatusUpcoming
	}
}
