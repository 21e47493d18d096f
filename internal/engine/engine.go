// Package engine runs the scrape loop: fixtures discovery, scheduling,
// dispatch to workers, and lifecycle bookkeeping.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/config"
	"github.com/crickstats/cricsync/internal/listing"
	"github.com/crickstats/cricsync/internal/retry"
	"github.com/crickstats/cricsync/internal/scheduler"
	"github.com/crickstats/cricsync/internal/scrape"
)

// jobBuffer sizes the dispatch channel. A full buffer reschedules the
// job instead of blocking the tick loop.
const jobBuffer = 256

// Runner executes one scrape job end to end. *retry.Coordinator is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, match scrape.Match, section scrape.Section) retry.Result
}

// Engine owns the background goroutines of the service.
type Engine struct {
	cfg    config.Config
	store  scrape.Store
	coord  Runner
	lister *listing.Lister
	clock  scrape.Clock
	logger *zap.Logger

	sched    *scheduler.Scheduler
	registry *registry
	jobs     chan scheduler.Job
	wg       sync.WaitGroup
}

// New wires an Engine. Workers are sized to the browser pool: more
// workers than sessions would only queue on Acquire.
func New(
	cfg config.Config,
	store scrape.Store,
	coord Runner,
	lister *listing.Lister,
	clock scrape.Clock,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		coord:    coord,
		lister:   lister,
		clock:    clock,
		logger:   logger,
		registry: newRegistry(),
		jobs:     make(chan scheduler.Job, jobBuffer),
	}
	e.sched = scheduler.New(scheduler.Cadence{
		Upcoming:        cfg.Poll.UpcomingInterval(),
		Live:            cfg.Poll.LiveInterval(),
		StructuralDefer: cfg.Retry.StructuralDefer(),
		BackoffCeiling:  cfg.Retry.BackoffCeiling(),
	}, e.dispatch, logger)
	return e
}

// Run blocks until the context is canceled, then drains the workers.
func (e *Engine) Run(ctx context.Context) error {
	// Seed the registry before the first tick so restarts resume
	// tracked matches without waiting for a listing refresh.
	if err := e.loadKnownMatches(ctx); err != nil {
		return err
	}
	e.refreshListing(ctx)

	for i := 0; i < e.cfg.Browser.PoolSize; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
	e.wg.Add(1)
	go e.listingLoop(ctx)

	ticker := time.NewTicker(e.cfg.Poll.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return nil
		case <-ticker.C:
			e.sched.Tick(e.clock.Now())
		}
	}
}

// dispatch hands a due job to the worker channel without blocking the
// scheduler. A full buffer means the workers are saturated; the job goes
// back on the schedule at the backoff ceiling.
func (e *Engine) dispatch(j scheduler.Job) {
	select {
	case e.jobs <- j:
	default:
		e.logger.Warn("job buffer full, rescheduling",
			zap.String("match_id", j.Key.MatchID),
			zap.String("section", string(j.Key.Section)),
		)
		status := scrape.StatusUpcoming
		if m, ok := e.registry.get(j.Key.MatchID); ok {
			status = m.Status
		}
		e.sched.Complete(j.Key, status, scheduler.OutcomeExhausted, e.clock.Now())
	}
}

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.jobs:
			e.handleJob(ctx, j)
		}
	}
}

// handleJob runs one scrape attempt end to end and reports the result
// back to the scheduler. Status promotion derived from a fresh payload
// takes effect on this very reschedule.
func (e *Engine) handleJob(ctx context.Context, j scheduler.Job) {
	match, ok := e.registry.get(j.Key.MatchID)
	if !ok {
		// Registry and scheduler disagree; drop the job for good.
		e.sched.Complete(j.Key, scrape.StatusCompleted, scheduler.OutcomeSuccess, e.clock.Now())
		return
	}

	res := e.coord.Run(ctx, match, j.Key.Section)

	status := match.Status
	if res.Outcome == retry.OutcomeSuccess && res.Snapshot != nil {
		if derived := scrape.DeriveStatus(match.Status, res.Snapshot.Payload); derived != match.Status {
			e.promote(ctx, match, derived)
			status = derived
		}
	}

	e.sched.Complete(j.Key, status, schedulerOutcome(res.Outcome), e.clock.Now())
}

// promote advances a match's lifecycle state everywhere: store, registry,
// and every non-in-flight sibling job.
func (e *Engine) promote(ctx context.Context, match scrape.Match, status scrape.MatchStatus) {
	e.logger.Info("match status changed",
		zap.String("match_id", match.ID),
		zap.String("from", string(match.Status)),
		zap.String("to", string(status)),
	)
	if err := e.store.SetStatus(ctx, match.ID, status); err != nil {
		e.logger.Error("status persist failed", zap.String("match_id", match.ID), zap.Error(err))
	}
	e.registry.setStatus(match.ID, status)
	e.sched.UpdateStatus(match.ID, status, e.clock.Now())
}

func (e *Engine) listingLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.Listing.ListingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.refreshListing(ctx)
		}
	}
}

// refreshListing discovers matches from the fixtures page. A failed
// refresh keeps the current schedule; discovery is additive only.
func (e *Engine) refreshListing(ctx context.Context) {
	matches, err := e.lister.Fetch(ctx)
	if err != nil {
		e.logger.Warn("fixtures refresh failed", zap.Error(err))
		return
	}
	now := e.clock.Now()
	for _, m := range matches {
		if err := e.store.UpsertMatch(ctx, m); err != nil {
			e.logger.Error("match upsert failed", zap.String("match_id", m.ID), zap.Error(err))
			continue
		}
		prev, known := e.registry.get(m.ID)
		tracked := e.registry.upsert(m)
		e.sched.Track(tracked, now)
		if known && tracked.Status != prev.Status {
			e.sched.UpdateStatus(m.ID, tracked.Status, now)
		}
	}
	e.logger.Debug("fixtures refresh applied",
		zap.Int("discovered", len(matches)),
		zap.Int("tracked", e.registry.len()),
	)
}

// loadKnownMatches restores previously tracked matches from the store.
func (e *Engine) loadKnownMatches(ctx context.Context) error {
	matches, err := e.store.ListMatches(ctx)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	for _, m := range matches {
		if m.Status == scrape.StatusCompleted {
			continue
		}
		e.registry.upsert(m)
		e.sched.Track(m, now)
	}
	e.logger.Info("match registry restored", zap.Int("matches", len(matches)))
	return nil
}

func schedulerOutcome(o retry.Outcome) scheduler.Outcome {
	switch o {
	case retry.OutcomeStructural:
		return scheduler.OutcomeStructural
	case retry.OutcomeExhausted:
		return scheduler.OutcomeExhausted
	default:
		return scheduler.OutcomeSuccess
	}
}
