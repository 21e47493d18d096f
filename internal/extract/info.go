package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crickstats/cricsync/internal/scrape"
)

func parseInfo(doc *goquery.Document) (scrape.Payload, error) {
	container := doc.Find("[class*='info']").First()
	if container.Length() == 0 {
		return nil, scrape.NewParseError(scrape.SectionInfo, "info container missing")
	}

	payload := scrape.InfoPayload{
		Teams: scrape.TeamInfo{
			Home: docText(doc, ".team-home, .teamA, .team1, .team-left"),
			Away: docText(doc, ".team-away, .teamB, .team2, .team-right"),
		},
		Series: docText(doc, ".series-name, .series"),
		Format: docText(doc, ".match-format, .format"),
		Venue:  docText(doc, ".venue-name, .venue"),
		Date:   docText(doc, ".match-date, .date"),
		Time:   docText(doc, ".match-time, .time"),
		Toss:   docText(doc, ".toss-result, .toss"),
	}
	doc.Find(".umpire, .umpires").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			payload.Umpires = append(payload.Umpires, name)
		}
	})

	if payload.Teams.Home == "" && payload.Teams.Away == "" {
		return nil, scrape.NewParseError(scrape.SectionInfo, "no teams found")
	}
	return payload, nil
}

func parseSquads(doc *goquery.Document) (scrape.Payload, error) {
	container := doc.Find("[class*='squad']").First()
	if container.Length() == 0 {
		return nil, scrape.NewParseError(scrape.SectionSquads, "squads container missing")
	}

	payload := scrape.SquadsPayload{
		Home: scrape.TeamSquad{
			Name:    text(container, ".home-team-name, .teamA, .team1, .team-left"),
			Players: parsePlayers(container, ".home-team-squad, .teamA, .team1, .team-left"),
		},
		Away: scrape.TeamSquad{
			Name:    text(container, ".away-team-name, .teamB, .team2, .team-right"),
			Players: parsePlayers(container, ".away-team-squad, .teamB, .team2, .team-right"),
		},
	}

	if len(payload.Home.Players) == 0 && len(payload.Away.Players) == 0 {
		return nil, scrape.NewParseError(scrape.SectionSquads, "no players found")
	}
	return payload, nil
}

func parsePlayers(container *goquery.Selection, teamSelector string) []scrape.SquadPlayer {
	var players []scrape.SquadPlayer
	for _, sel := range strings.Split(teamSelector, ",") {
		sel = strings.TrimSpace(sel)
		container.Find(sel + " .player, " + sel + " .player-row, " + sel + " .player-item").
			Each(func(_ int, s *goquery.Selection) {
				name := text(s, ".player-name")
				if name == "" {
					name = strings.TrimSpace(s.Text())
				}
				if name == "" {
					return
				}
				players = append(players, scrape.SquadPlayer{
					Name:         name,
					Role:         text(s, ".player-role"),
					Captain:      s.Find(".captain-indicator, .captain").Length() > 0,
					Wicketkeeper: s.Find(".wicketkeeper-indicator, .wicketkeeper").Length() > 0,
				})
			})
		if len(players) > 0 {
			break
		}
	}
	return players
}
