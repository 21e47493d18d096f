// Package extract converts rendered match-page DOM into section payloads.
//
// Extractors are pure: they never touch shared state and never retry.
// Retry policy lives entirely in the retry coordinator.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crickstats/cricsync/internal/scrape"
)

// Extractor parses section payloads and computes their fingerprints.
type Extractor struct {
	hasher scrape.Hasher
}

// New constructs an Extractor.
func New(hasher scrape.Hasher) *Extractor {
	return &Extractor{hasher: hasher}
}

// Extract parses the DOM for one section and returns the payload plus its
// content fingerprint. A parse error means required fields are
// structurally missing, not that the match data is merely empty.
func (e *Extractor) Extract(section scrape.Section, dom string) (scrape.Payload, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(dom))
	if err != nil {
		return nil, "", scrape.NewParseError(section, "unparseable document: "+err.Error())
	}

	var payload scrape.Payload
	switch section {
	case scrape.SectionInfo:
		payload, err = parseInfo(doc)
	case scrape.SectionSquads:
		payload, err = parseSquads(doc)
	case scrape.SectionLive:
		payload, err = parseLive(doc)
	case scrape.SectionScorecard:
		payload, err = parseScorecard(doc)
	default:
		return nil, "", scrape.NewParseError(section, "unknown section")
	}
	if err != nil {
		return nil, "", err
	}

	fp, err := e.hasher.Fingerprint(payload)
	if err != nil {
		return nil, "", scrape.NewParseError(section, "fingerprint: "+err.Error())
	}
	return payload, fp, nil
}

// text returns the trimmed text of the first node matching any selector
// in the comma-separated list.
func text(s *goquery.Selection, selectors string) string {
	return strings.TrimSpace(s.Find(selectors).First().Text())
}

func docText(doc *goquery.Document, selectors string) string {
	return strings.TrimSpace(doc.Find(selectors).First().Text())
}
