// Package browser manages a bounded pool of headless browser sessions.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/metrics"
	"github.com/crickstats/cricsync/internal/scrape"
)

// LaunchFunc creates a fresh browser session. Replacements for discarded
// sessions are launched lazily through this seam, which also lets tests
// inject fake sessions.
type LaunchFunc func(ctx context.Context) (scrape.Session, error)

// PoolConfig controls pool capacity and acquisition behavior.
type PoolConfig struct {
	Capacity       int
	AcquireTimeout time.Duration
}

// Pool implements scrape.SessionPool with bounded capacity.
type Pool struct {
	cfg    PoolConfig
	launch LaunchFunc
	logger *zap.Logger

	mu     sync.Mutex
	live   int
	closed bool

	idle chan scrape.Session
}

// NewPool creates a pool. Sessions are launched on demand, not up front.
func NewPool(cfg PoolConfig, launch LaunchFunc, logger *zap.Logger) (*Pool, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("pool capacity must be > 0")
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 15 * time.Second
	}
	if launch == nil {
		return nil, fmt.Errorf("launch func is required")
	}
	return &Pool{
		cfg:    cfg,
		launch: launch,
		logger: logger,
		idle:   make(chan scrape.Session, cfg.Capacity),
	}, nil
}

// Acquire returns an idle session, launches a new one while under
// capacity, or blocks until a session frees up. A wait longer than the
// configured timeout fails with a pool-exhausted error.
func (p *Pool) Acquire(ctx context.Context) (scrape.Session, error) {
	select {
	case s := <-p.idle:
		return s, nil
	default:
	}

	if p.reserveSlot() {
		s, err := p.launch(ctx)
		if err != nil {
			p.releaseSlot()
			return nil, scrape.NewSessionCrash(fmt.Errorf("launch session: %w", err))
		}
		metrics.SetSessionsActive(p.Live())
		return s, nil
	}

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	select {
	case s := <-p.idle:
		return s, nil
	case <-timer.C:
		return nil, scrape.NewPoolExhausted(fmt.Errorf("no session within %s", p.cfg.AcquireTimeout))
	case <-ctx.Done():
		return nil, scrape.NewPoolExhausted(fmt.Errorf("acquire canceled: %w", ctx.Err()))
	}
}

// Release returns a healthy session to the idle set.
func (p *Pool) Release(s scrape.Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.dropSession(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		// Full idle set means an accounting bug upstream; drop rather than block.
		p.dropSession(s)
	}
}

// Discard drops an unusable session. The freed slot allows a later
// Acquire to launch a replacement.
func (p *Pool) Discard(s scrape.Session) {
	if s == nil {
		return
	}
	metrics.ObserveSessionDiscarded()
	p.dropSession(s)
	if p.logger != nil {
		p.logger.Warn("browser session discarded", zap.String("session_id", s.ID()), zap.Int("live", p.Live()))
	}
}

// Close shuts down all idle sessions. Sessions still leased are closed by
// their holders via Discard.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case s := <-p.idle:
			p.dropSession(s)
		default:
			return
		}
	}
}

// Live reports the number of sessions currently owned by the pool.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *Pool) reserveSlot() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.live >= p.cfg.Capacity {
		return false
	}
	p.live++
	return true
}

func (p *Pool) releaseSlot() {
	p.mu.Lock()
	if p.live > 0 {
		p.live--
	}
	p.mu.Unlock()
	metrics.SetSessionsActive(p.Live())
}

func (p *Pool) dropSession(s scrape.Session) {
	if err := s.Close(); err != nil && p.logger != nil {
		p.logger.Warn("session close failed", zap.String("session_id", s.ID()), zap.Error(err))
	}
	p.releaseSlot()
}
