// Package scheduler maintains per-match, per-section scrape due-times.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/metrics"
	"github.com/crickstats/cricsync/internal/scrape"
)

// Outcome summarizes a finished job attempt for rescheduling.
type Outcome int

// Attempt outcomes. Unchanged reconciles count as success; the cadence
// does not care whether the payload moved.
const (
	OutcomeSuccess Outcome = iota
	OutcomeStructural
	OutcomeExhausted
)

// Job is the dispatchable view of one scheduled scrape.
type Job struct {
	Key       scrape.JobKey
	NextRun   time.Time
	FinalPass bool
}

// Cadence holds the polling intervals keyed to match lifecycle state.
type Cadence struct {
	// Upcoming is the info/squads interval while a match is upcoming.
	Upcoming time.Duration
	// Live is the live/scorecard interval while a match is live.
	Live time.Duration
	// StructuralDefer delays jobs after section-unavailable/parse failures.
	StructuralDefer time.Duration
	// BackoffCeiling delays jobs after exhausted transient retries.
	BackoffCeiling time.Duration
}

// DispatchFunc receives due jobs from Tick. It must not block; the
// engine hands jobs to a buffered worker channel.
type DispatchFunc func(Job)

// Scheduler owns the due-job set. All mutation happens under one lock;
// workers only see dispatched copies.
type Scheduler struct {
	mu       sync.Mutex
	cadence  Cadence
	dispatch DispatchFunc
	logger   *zap.Logger

	jobs map[scrape.JobKey]*job
	due  jobHeap
}

// job is the scheduler-internal state for one (match, section) key.
// At most one job exists per key, and at most one is in flight.
type job struct {
	key     scrape.JobKey
	nextRun time.Time
	state   scrape.JobState
	parked  bool
	final   bool
	index   int
}

// New constructs a Scheduler.
func New(cadence Cadence, dispatch DispatchFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cadence:  cadence,
		dispatch: dispatch,
		logger:   logger,
		jobs:     make(map[scrape.JobKey]*job),
	}
}

// Track ensures jobs exist for every section of the match, scheduled
// according to its current status. Newly tracked sections run immediately.
func (s *Scheduler) Track(m scrape.Match, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, section := range scrape.AllSections {
		key := scrape.JobKey{MatchID: m.ID, Section: section}
		if _, ok := s.jobs[key]; ok {
			continue
		}
		j := &job{key: key, state: scrape.JobPending, index: -1}
		s.jobs[key] = j
		s.applyStatusLocked(j, m.Status, now)
	}
}

// UpdateStatus re-keys every job of the match to the new lifecycle state.
// In-flight jobs are left alone; Complete picks up the new status.
func (s *Scheduler) UpdateStatus(matchID string, status scrape.MatchStatus, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, section := range scrape.AllSections {
		j, ok := s.jobs[scrape.JobKey{MatchID: matchID, Section: section}]
		if !ok || j.state == scrape.JobInFlight {
			continue
		}
		s.applyStatusLocked(j, status, now)
	}
}

// Tick pops every job whose due-time has elapsed, marks it in-flight, and
// dispatches it. Jobs already in flight are never double-dispatched: a
// dispatched job leaves the due set until Complete re-admits it.
func (s *Scheduler) Tick(now time.Time) int {
	started := time.Now()
	s.mu.Lock()
	dispatched := 0
	var out []Job
	for s.due.Len() > 0 {
		top := s.due[0]
		if top.nextRun.After(now) {
			break
		}
		heap.Pop(&s.due)
		if top.state == scrape.JobInFlight || top.parked {
			continue
		}
		top.state = scrape.JobInFlight
		metrics.IncJobsInFlight()
		out = append(out, Job{Key: top.key, NextRun: top.nextRun, FinalPass: top.final})
		dispatched++
	}
	s.mu.Unlock()

	for _, j := range out {
		s.dispatch(j)
	}
	metrics.ObserveTick(time.Since(started))
	return dispatched
}

// Complete re-admits a finished job. The next due-time is computed from
// the match's current status, so a status change mid-flight switches the
// cadence on this very reschedule. A completed final pass removes the job
// for good.
func (s *Scheduler) Complete(key scrape.JobKey, status scrape.MatchStatus, outcome Outcome, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[key]
	if !ok {
		return
	}
	if j.state == scrape.JobInFlight {
		metrics.DecJobsInFlight()
	}
	j.state = scrape.JobPending

	if j.final {
		// The one post-completion pass has run; the match leaves the schedule.
		delete(s.jobs, key)
		s.removeLocked(j)
		return
	}

	if status == scrape.StatusCompleted {
		j.final = true
		s.scheduleLocked(j, now)
		return
	}

	interval, active := s.cadenceFor(key.Section, status)
	if !active {
		s.parkLocked(j)
		return
	}
	switch outcome {
	case OutcomeStructural:
		interval = s.cadence.StructuralDefer
	case OutcomeExhausted:
		interval = s.cadence.BackoffCeiling
	}
	s.scheduleLocked(j, now.Add(interval))
}

// InFlight returns the number of jobs currently dispatched.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.state == scrape.JobInFlight {
			n++
		}
	}
	return n
}

// Pending returns the number of jobs waiting in the due set.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due.Len()
}

func (s *Scheduler) applyStatusLocked(j *job, status scrape.MatchStatus, now time.Time) {
	if status == scrape.StatusCompleted {
		if !j.final {
			j.final = true
			s.scheduleLocked(j, now)
		}
		return
	}
	if _, active := s.cadenceFor(j.key.Section, status); active {
		s.scheduleLocked(j, now)
		return
	}
	s.parkLocked(j)
}

// cadenceFor returns the polling interval for a section under a status
// and whether the section is polled at all in that state.
func (s *Scheduler) cadenceFor(section scrape.Section, status scrape.MatchStatus) (time.Duration, bool) {
	switch status {
	case scrape.StatusUpcoming:
		if section == scrape.SectionInfo || section == scrape.SectionSquads {
			return s.cadence.Upcoming, true
		}
	case scrape.StatusLive:
		if section.HasHistory() {
			return s.cadence.Live, true
		}
	}
	return 0, false
}

func (s *Scheduler) scheduleLocked(j *job, at time.Time) {
	j.parked = false
	j.nextRun = at
	if j.index >= 0 {
		heap.Fix(&s.due, j.index)
		return
	}
	heap.Push(&s.due, j)
}

func (s *Scheduler) parkLocked(j *job) {
	j.parked = true
	s.removeLocked(j)
}

func (s *Scheduler) removeLocked(j *job) {
	if j.index >= 0 {
		heap.Remove(&s.due, j.index)
	}
}

// jobHeap orders jobs by due-time.
type jobHeap []*job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].nextRun.Before(h[j].nextRun) }
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}
