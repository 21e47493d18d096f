package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crickstats/cricsync/internal/scrape"
)

// maxInnings bounds the innings scan; test matches have at most four.
const maxInnings = 4

func parseScorecard(doc *goquery.Document) (scrape.Payload, error) {
	container := doc.Find("[class*='scorecard']").First()
	if container.Length() == 0 {
		return nil, scrape.NewParseError(scrape.SectionScorecard, "scorecard container missing")
	}

	payload := scrape.ScorecardPayload{
		Summary:          text(container, ".match-summary"),
		PlayerOfTheMatch: text(container, ".player-of-match"),
	}

	for i := 1; i <= maxInnings; i++ {
		sel := container.Find(fmt.Sprintf(".innings-%d", i)).First()
		if sel.Length() == 0 {
			continue
		}
		payload.Innings = append(payload.Innings, parseInnings(sel))
	}

	if len(payload.Innings) == 0 {
		return nil, scrape.NewParseError(scrape.SectionScorecard, "no innings table found")
	}
	return payload, nil
}

func parseInnings(sel *goquery.Selection) scrape.Innings {
	innings := scrape.Innings{
		Team:   text(sel, ".innings-team"),
		Total:  text(sel, ".innings-total"),
		Overs:  text(sel, ".innings-overs"),
		Extras: text(sel, ".innings-extras"),
	}

	sel.Find(".batsman-row").Each(func(_ int, row *goquery.Selection) {
		name := text(row, ".batsman-name")
		if name == "" {
			name = strings.TrimSpace(row.Text())
		}
		if name == "" {
			return
		}
		innings.Batters = append(innings.Batters, scrape.Batter{
			Name:       name,
			Dismissal:  text(row, ".batsman-dismissal"),
			Runs:       text(row, ".batsman-runs"),
			Balls:      text(row, ".batsman-balls"),
			Fours:      text(row, ".batsman-fours"),
			Sixes:      text(row, ".batsman-sixes"),
			StrikeRate: text(row, ".batsman-strike-rate"),
		})
	})

	sel.Find(".bowler-row").Each(func(_ int, row *goquery.Selection) {
		name := text(row, ".bowler-name")
		if name == "" {
			name = strings.TrimSpace(row.Text())
		}
		if name == "" {
			return
		}
		innings.Bowlers = append(innings.Bowlers, scrape.Bowler{
			Name:    name,
			Overs:   text(row, ".bowler-overs"),
			Maidens: text(row, ".bowler-maidens"),
			Runs:    text(row, ".bowler-runs"),
			Wickets: text(row, ".bowler-wickets"),
			Economy: text(row, ".bowler-economy"),
		})
	})

	sel.Find(".fow-item").Each(func(_ int, item *goquery.Selection) {
		if fow := strings.TrimSpace(item.Text()); fow != "" {
			innings.FallOfWickets = append(innings.FallOfWickets, fow)
		}
	})

	return innings
}
