// Package retry wraps one scrape job attempt with classification-aware
// retry and backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/extract"
	"github.com/crickstats/cricsync/internal/metrics"
	"github.com/crickstats/cricsync/internal/navigator"
	"github.com/crickstats/cricsync/internal/scrape"
	"github.com/crickstats/cricsync/internal/syncer"
)

// Outcome classifies the end state of one wrapped attempt.
type Outcome int

// Outcomes. Structural failures are deferred rather than retried;
// exhausted means transient retries ran out and the job is failed until
// its ceiling reschedule.
const (
	OutcomeSuccess Outcome = iota
	OutcomeStructural
	OutcomeExhausted
)

// Result reports the wrapped attempt back to the engine.
type Result struct {
	Outcome   Outcome
	Snapshot  *scrape.SectionSnapshot
	Reconcile syncer.Result
	Attempts  int
	Err       error
}

// Archiver captures the raw DOM of structural failures for diagnosis.
type Archiver interface {
	ArchiveFailure(ctx context.Context, matchID string, section scrape.Section, dom string)
}

// Config controls retry behavior.
type Config struct {
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
	AttemptTimeout time.Duration
}

// Coordinator executes job attempts end to end: session acquisition,
// navigation, extraction, and reconciliation.
type Coordinator struct {
	pool      scrape.SessionPool
	nav       *navigator.Navigator
	extractor *extract.Extractor
	writer    *syncer.Writer
	archiver  Archiver
	clock     scrape.Clock
	cfg       Config
	logger    *zap.Logger

	// sleep is a seam for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Coordinator. The archiver may be nil.
func New(
	pool scrape.SessionPool,
	nav *navigator.Navigator,
	extractor *extract.Extractor,
	writer *syncer.Writer,
	archiver Archiver,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = 5 * time.Minute
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		pool:      pool,
		nav:       nav,
		extractor: extractor,
		writer:    writer,
		archiver:  archiver,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Run executes one job with retries. Failures never propagate past the
// returned Result; the scheduler and pool stay unaffected by any single
// match's problems.
func (c *Coordinator) Run(ctx context.Context, match scrape.Match, section scrape.Section) Result {
	started := time.Now()
	defer func() {
		metrics.ObserveAttempt(string(section), time.Since(started))
	}()

	var lastErr error
	for attempt := 0; ; attempt++ {
		snap, dom, err := c.attempt(ctx, match, section)
		if err == nil {
			res, werr := c.reconcile(ctx, snap)
			if werr == nil {
				metrics.ObserveScrape(string(section), "success")
				return Result{Outcome: OutcomeSuccess, Snapshot: &snap, Reconcile: res, Attempts: attempt + 1}
			}
			// Write retries live inside reconcile. Re-scraping cannot fix a
			// storage outage, so the job fails here without touching the pool.
			c.logger.Error("snapshot write retries exhausted, job failed",
				zap.String("match_id", match.ID),
				zap.String("section", string(section)),
				zap.Error(werr),
			)
			metrics.ObserveScrape(string(section), "exhausted")
			return Result{Outcome: OutcomeExhausted, Attempts: attempt + 1, Err: werr}
		}
		lastErr = err
		kind := scrape.KindOf(err)

		if kind.Structural() {
			c.logger.Warn("structural scrape failure, deferring job",
				zap.String("match_id", match.ID),
				zap.String("section", string(section)),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			if c.archiver != nil && dom != "" {
				c.archiver.ArchiveFailure(ctx, match.ID, section, dom)
			}
			metrics.ObserveScrape(string(section), "structural")
			return Result{Outcome: OutcomeStructural, Attempts: attempt + 1, Err: err}
		}

		if attempt >= c.cfg.MaxRetries || ctx.Err() != nil {
			c.logger.Error("scrape retries exhausted, job failed",
				zap.String("match_id", match.ID),
				zap.String("section", string(section)),
				zap.String("kind", string(kind)),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			metrics.ObserveScrape(string(section), "exhausted")
			return Result{Outcome: OutcomeExhausted, Attempts: attempt + 1, Err: lastErr}
		}

		metrics.ObserveRetry(string(kind))
		delay := c.backoff(attempt)
		c.logger.Debug("transient scrape failure, backing off",
			zap.String("match_id", match.ID),
			zap.String("section", string(section)),
			zap.String("kind", string(kind)),
			zap.Duration("delay", delay),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return Result{Outcome: OutcomeExhausted, Attempts: attempt + 1, Err: lastErr}
		}
	}
}

// attempt performs one scrape: acquire, position, extract. It returns the
// rendered DOM alongside any error so structural failures can be archived.
func (c *Coordinator) attempt(ctx context.Context, match scrape.Match, section scrape.Section) (scrape.SectionSnapshot, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	sess, err := c.pool.Acquire(attemptCtx)
	if err != nil {
		return scrape.SectionSnapshot{}, "", err
	}

	dom, err := c.nav.Position(attemptCtx, sess, match.URL, section)
	if err != nil {
		// An attempt timeout forcibly abandons the session mid-action, so
		// the crash classification subsumes it.
		if attemptCtx.Err() != nil || scrape.KindOf(err) == scrape.FailureSessionCrash {
			c.pool.Discard(sess)
			if attemptCtx.Err() != nil && scrape.KindOf(err) != scrape.FailureSessionCrash {
				err = scrape.NewSessionCrash(err)
			}
		} else {
			c.pool.Release(sess)
		}
		return scrape.SectionSnapshot{}, "", err
	}
	c.pool.Release(sess)

	payload, fp, err := c.extractor.Extract(section, dom)
	if err != nil {
		return scrape.SectionSnapshot{}, dom, err
	}

	return scrape.SectionSnapshot{
		MatchID:     match.ID,
		Section:     section,
		Payload:     payload,
		Fingerprint: fp,
		ScrapedAt:   c.clock.Now(),
	}, dom, nil
}

// reconcile retries the storage write only, never the scrape.
func (c *Coordinator) reconcile(ctx context.Context, snap scrape.SectionSnapshot) (syncer.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		res, err := c.writer.Reconcile(ctx, snap)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !scrape.KindOf(err).Transient() {
			return "", err
		}
		metrics.ObserveRetry(string(scrape.FailureStorage))
		if attempt < c.cfg.MaxRetries {
			if serr := c.sleep(ctx, c.backoff(attempt)); serr != nil {
				break
			}
		}
	}
	return "", lastErr
}

// backoff returns base × 2^attempt capped at the ceiling, with jitter.
func (c *Coordinator) backoff(attempt int) time.Duration {
	delay := float64(c.cfg.BackoffBase) * math.Pow(2, float64(attempt))
	if delay > float64(c.cfg.BackoffCeiling) {
		delay = float64(c.cfg.BackoffCeiling)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.New("backoff canceled")
	}
}
