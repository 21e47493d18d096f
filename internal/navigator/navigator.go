// Package navigator drives a browser session to a match page section.
package navigator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/scrape"
)

// State is the navigator's position in one job attempt.
type State int

// Attempt states. Every attempt walks Idle, Loading, Ready, Positioned,
// Done in order, or ends in Failed.
const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePositioned
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePositioned:
		return "positioned"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// pageReadyMarker is the DOM marker whose visibility proves the match
// page app has rendered.
const pageReadyMarker = "[class*='match']"

// sectionMarkers prove that a section's content has rendered after a tab
// switch.
var sectionMarkers = map[scrape.Section]string{
	scrape.SectionInfo:      "[class*='info']",
	scrape.SectionSquads:    "[class*='squad']",
	scrape.SectionLive:      "[class*='live']",
	scrape.SectionScorecard: "[class*='scorecard']",
}

// tabSelectors locate the clickable tab for each section.
var tabSelectors = map[scrape.Section]string{
	scrape.SectionInfo:      "[data-tab='info'], .nav-item a[href*='info']",
	scrape.SectionSquads:    "[data-tab='squads'], .nav-item a[href*='squad']",
	scrape.SectionLive:      "[data-tab='live'], .nav-item a[href*='live']",
	scrape.SectionScorecard: "[data-tab='scorecard'], .nav-item a[href*='scorecard']",
}

// Config bounds the navigator's waits.
type Config struct {
	NavTimeout     time.Duration
	SectionTimeout time.Duration
}

// Navigator positions a session on a match page section and reads the
// rendered DOM. It holds no session state between attempts.
type Navigator struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Navigator.
func New(cfg Config, logger *zap.Logger) *Navigator {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	if cfg.SectionTimeout <= 0 {
		cfg.SectionTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{cfg: cfg, logger: logger}
}

// Position loads the match page, switches to the requested section, and
// returns the rendered DOM. Failures carry the taxonomy kind matching the
// phase they occurred in: load instability is a navigation timeout, a
// missing section marker means the section is unavailable, and anything
// else from the driver is treated as a session crash.
func (n *Navigator) Position(ctx context.Context, d scrape.Driver, url string, section scrape.Section) (string, error) {
	if !section.Valid() {
		return "", scrape.NewParseError(section, "unknown section")
	}

	state := StateLoading
	n.debug(url, section, state)
	if err := d.Navigate(ctx, url); err != nil {
		if isTimeout(err) {
			return "", scrape.NewNavigationTimeout(url, err)
		}
		return "", scrape.NewSessionCrash(err)
	}
	if err := d.WaitFor(ctx, pageReadyMarker, n.cfg.NavTimeout); err != nil {
		if isTimeout(err) {
			return "", scrape.NewNavigationTimeout(url, err)
		}
		return "", scrape.NewSessionCrash(err)
	}

	state = StateReady
	n.debug(url, section, state)
	// The tab may be absent for this match; a failed click is treated the
	// same as a missing marker.
	if err := d.Click(ctx, tabSelectors[section]); err != nil {
		if isTimeout(err) || isNotFound(err) {
			return "", scrape.NewSectionUnavailable(section, err)
		}
		return "", scrape.NewSessionCrash(err)
	}
	if err := d.WaitFor(ctx, sectionMarkers[section], n.cfg.SectionTimeout); err != nil {
		if isTimeout(err) {
			return "", scrape.NewSectionUnavailable(section, err)
		}
		return "", scrape.NewSessionCrash(err)
	}

	state = StatePositioned
	n.debug(url, section, state)
	dom, err := d.ReadDOM(ctx)
	if err != nil {
		return "", scrape.NewSessionCrash(err)
	}
	n.debug(url, section, StateDone)
	return dom, nil
}

func (n *Navigator) debug(url string, section scrape.Section, state State) {
	n.logger.Debug("navigator transition",
		zap.String("url", url),
		zap.String("section", string(section)),
		zap.Stringer("state", state),
	)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "waiting for selector") ||
		strings.Contains(msg, "no nodes")
}
