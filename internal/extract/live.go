package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crickstats/cricsync/internal/scrape"
)

// commentaryHead caps how many commentary lines one snapshot carries.
const commentaryHead = 10

func parseLive(doc *goquery.Document) (scrape.Payload, error) {
	container := doc.Find("[class*='live']").First()
	if container.Length() == 0 {
		return nil, scrape.NewParseError(scrape.SectionLive, "live container missing")
	}

	payload := scrape.LivePayload{
		CurrentInnings:  text(container, ".current-innings"),
		Score:           text(container, ".current-score, .score"),
		RunRate:         text(container, ".run-rate"),
		RequiredRunRate: text(container, ".required-run-rate"),
		LastWicket:      text(container, ".last-wicket"),
		Partnership:     text(container, ".current-partnership"),
		MatchStatus:     text(container, ".match-status, .status"),
	}

	container.Find(".recent-ball").Each(func(_ int, s *goquery.Selection) {
		if ball := strings.TrimSpace(s.Text()); ball != "" {
			payload.RecentBalls = append(payload.RecentBalls, ball)
		}
	})

	container.Find(".batsman, .batsman-row").Each(func(_ int, s *goquery.Selection) {
		name := text(s, ".batsman-name")
		if name == "" {
			name = strings.TrimSpace(s.Text())
		}
		if name == "" {
			return
		}
		payload.Batters = append(payload.Batters, scrape.Batter{
			Name:       name,
			Runs:       text(s, ".batsman-runs"),
			Balls:      text(s, ".batsman-balls"),
			Fours:      text(s, ".batsman-fours"),
			Sixes:      text(s, ".batsman-sixes"),
			StrikeRate: text(s, ".batsman-strike-rate"),
		})
	})

	container.Find(".bowler, .bowler-row").Each(func(_ int, s *goquery.Selection) {
		name := text(s, ".bowler-name")
		if name == "" {
			name = strings.TrimSpace(s.Text())
		}
		if name == "" {
			return
		}
		payload.Bowlers = append(payload.Bowlers, scrape.Bowler{
			Name:    name,
			Overs:   text(s, ".bowler-overs"),
			Maidens: text(s, ".bowler-maidens"),
			Runs:    text(s, ".bowler-runs"),
			Wickets: text(s, ".bowler-wickets"),
			Economy: text(s, ".bowler-economy"),
		})
	})

	container.Find(".commentary-item, .commentary-row").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= commentaryHead {
			return false
		}
		entry := scrape.CommentaryEntry{
			Text:      text(s, ".commentary-text"),
			Over:      text(s, ".commentary-over"),
			Timestamp: text(s, ".commentary-timestamp"),
		}
		if entry.Text == "" {
			entry.Text = strings.TrimSpace(s.Text())
		}
		if entry.Text != "" {
			payload.Commentary = append(payload.Commentary, entry)
		}
		return true
	})

	if payload.Score == "" && payload.MatchStatus == "" {
		return nil, scrape.NewParseError(scrape.SectionLive, "neither score nor status found")
	}
	return payload, nil
}
