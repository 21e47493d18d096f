package scheduler_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickstats/cricsync/internal/scheduler"
	"github.com/crickstats/cricsync/internal/scrape"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testCadence() scheduler.Cadence {
	return scheduler.Cadence{
		Upcoming:        30 * time.Minute,
		Live:            30 * time.Second,
		StructuralDefer: 20 * time.Minute,
		BackoffCeiling:  5 * time.Minute,
	}
}

type recorder struct {
	mu   sync.Mutex
	jobs []scheduler.Job
}

func (r *recorder) dispatch(j scheduler.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
}

func (r *recorder) keys() []scrape.JobKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]scrape.JobKey, len(r.jobs))
	for i, j := range r.jobs {
		keys[i] = j.Key
	}
	return keys
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = nil
}

func match(status scrape.MatchStatus) scrape.Match {
	return scrape.Match{ID: "m-1", Status: status, URL: "https://example.com/m/1"}
}

func TestTrackDispatchesActiveSectionsImmediately(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusUpcoming), t0)
	n := s.Tick(t0)

	// Upcoming matches poll info and squads; live sections stay parked.
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []scrape.JobKey{
		{MatchID: "m-1", Section: scrape.SectionInfo},
		{MatchID: "m-1", Section: scrape.SectionSquads},
	}, rec.keys())
}

func TestTrackIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusUpcoming), t0)
	s.Track(match(scrape.StatusUpcoming), t0)
	n := s.Tick(t0)

	assert.Equal(t, 2, n, "re-tracking must not duplicate jobs")
}

func TestInFlightJobIsNeverDoubleDispatched(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusLive), t0)
	first := s.Tick(t0)
	require.Equal(t, 2, first)
	assert.Equal(t, 2, s.InFlight())

	rec.reset()
	// Far in the future, but the jobs have not completed.
	n := s.Tick(t0.Add(time.Hour))
	assert.Equal(t, 0, n)
	assert.Empty(t, rec.keys())
}

func TestCompleteReschedulesAtCadence(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusLive), t0)
	s.Tick(t0)
	key := scrape.JobKey{MatchID: "m-1", Section: scrape.SectionLive}
	s.Complete(key, scrape.StatusLive, scheduler.OutcomeSuccess, t0)

	rec.reset()
	assert.Equal(t, 0, s.Tick(t0.Add(29*time.Second)), "before the live cadence elapses")
	assert.Equal(t, 1, s.Tick(t0.Add(31*time.Second)))
	assert.Equal(t, []scrape.JobKey{key}, rec.keys())
}

func TestStructuralOutcomeDefersLonger(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusLive), t0)
	s.Tick(t0)
	key := scrape.JobKey{MatchID: "m-1", Section: scrape.SectionScorecard}
	s.Complete(key, scrape.StatusLive, scheduler.OutcomeStructural, t0)

	rec.reset()
	assert.Equal(t, 0, s.Tick(t0.Add(10*time.Minute)))
	assert.Equal(t, 1, s.Tick(t0.Add(21*time.Minute)))
}

func TestExhaustedOutcomeUsesBackoffCeiling(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusLive), t0)
	s.Tick(t0)
	key := scrape.JobKey{MatchID: "m-1", Section: scrape.SectionLive}
	s.Complete(key, scrape.StatusLive, scheduler.OutcomeExhausted, t0)

	rec.reset()
	assert.Equal(t, 0, s.Tick(t0.Add(4*time.Minute)))
	assert.Equal(t, 1, s.Tick(t0.Add(6*time.Minute)))
}

func TestStatusSwitchChangesCadence(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusUpcoming), t0)
	require.Equal(t, 2, s.Tick(t0))

	// Match goes live: live and scorecard wake up immediately.
	s.UpdateStatus("m-1", scrape.StatusLive, t0)
	rec.reset()
	n := s.Tick(t0)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []scrape.JobKey{
		{MatchID: "m-1", Section: scrape.SectionLive},
		{MatchID: "m-1", Section: scrape.SectionScorecard},
	}, rec.keys())
}

func TestCompletedMatchGetsExactlyOneFinalPass(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New(testCadence(), rec.dispatch, nil)

	s.Track(match(scrape.StatusLive), t0)
	s.Tick(t0)
	key := scrape.JobKey{MatchID: "m-1", Section: scrape.SectionScorecard}

	// Completion triggers an immediate final pass.
	s.Complete(key, scrape.StatusCompleted, scheduler.OutcomeSuccess, t0)
	rec.reset()
	n := s.Tick(t0)
	require.Equal(t, 1, n)
	assert.True(t, rec.jobs[0].FinalPass)

	// After the final pass completes, the job is gone for good.
	s.Complete(key, scrape.StatusCompleted, scheduler.OutcomeSuccess, t0)
	rec.reset()
	assert.Equal(t, 0, s.Tick(t0.Add(24*time.Hour)))
}

func TestCompleteUnknownKeyIsNoop(t *testing.T) {
	t.Parallel()

	s := scheduler.New(testCadence(), func(scheduler.Job) {}, nil)
	s.Complete(scrape.JobKey{MatchID: "ghost", Section: scrape.SectionLive}, scrape.StatusLive, scheduler.OutcomeSuccess, t0)
	assert.Equal(t, 0, s.Pending())
}

func TestPendingCountsDueSet(t *testing.T) {
	t.Parallel()

	s := scheduler.New(testCadence(), func(scheduler.Job) {}, nil)
	s.Track(match(scrape.StatusLive), t0)
	assert.Equal(t, 2, s.Pending())

	s.Tick(t0)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 2, s.InFlight())
}
