package browser_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickstats/cricsync/internal/browser"
	"github.com/crickstats/cricsync/internal/scrape"
)

type fakeSession struct {
	id     string
	closed atomic.Bool
}

func (f *fakeSession) ID() string { return f.id }
func (f *fakeSession) Close() error {
	f.closed.Store(true)
	return nil
}
func (f *fakeSession) Navigate(context.Context, string) error { return nil }
func (f *fakeSession) WaitFor(context.Context, string, time.Duration) error {
	return nil
}
func (f *fakeSession) Click(context.Context, string) error     { return nil }
func (f *fakeSession) ReadDOM(context.Context) (string, error) { return "<html></html>", nil }

func countingLauncher() (browser.LaunchFunc, *atomic.Int32) {
	var launches atomic.Int32
	launch := func(context.Context) (scrape.Session, error) {
		n := launches.Add(1)
		return &fakeSession{id: fmt.Sprintf("s-%d", n)}, nil
	}
	return launch, &launches
}

func TestAcquireLaunchesUpToCapacity(t *testing.T) {
	t.Parallel()

	launch, launches := countingLauncher()
	pool, err := browser.NewPool(browser.PoolConfig{Capacity: 2, AcquireTimeout: 100 * time.Millisecond}, launch, nil)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, int32(2), launches.Load())
	assert.Equal(t, 2, pool.Live())
}

func TestAcquireReusesReleasedSession(t *testing.T) {
	t.Parallel()

	launch, launches := countingLauncher()
	pool, err := browser.NewPool(browser.PoolConfig{Capacity: 1, AcquireTimeout: 100 * time.Millisecond}, launch, nil)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(s1)

	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, s1.ID(), s2.ID())
	assert.Equal(t, int32(1), launches.Load(), "released session must be reused, not relaunched")
}

func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	t.Parallel()

	launch, _ := countingLauncher()
	pool, err := browser.NewPool(browser.PoolConfig{Capacity: 1, AcquireTimeout: 50 * time.Millisecond}, launch, nil)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	_, err = pool.Acquire(ctx)
	require.NoError(t, err)

	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.Equal(t, scrape.FailurePoolExhausted, scrape.KindOf(err))
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	launch, _ := countingLauncher()
	pool, err := browser.NewPool(browser.PoolConfig{Capacity: 1, AcquireTimeout: 2 * time.Second}, launch, nil)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var acquired scrape.Session
	go func() {
		defer wg.Done()
		s, aerr := pool.Acquire(ctx)
		assert.NoError(t, aerr)
		acquired = s
	}()

	time.Sleep(20 * time.Millisecond)
	pool.Release(s1)
	wg.Wait()

	require.NotNil(t, acquired)
	assert.Equal(t, s1.ID(), acquired.ID())
}

func TestDiscardFreesSlotForRelaunch(t *testing.T) {
	t.Parallel()

	launch, launches := countingLauncher()
	pool, err := browser.NewPool(browser.PoolConfig{Capacity: 1, AcquireTimeout: 100 * time.Millisecond}, launch, nil)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)

	pool.Discard(s1)
	assert.True(t, s1.(*fakeSession).closed.Load())
	assert.Equal(t, 0, pool.Live())

	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, int32(2), launches.Load())
}

func TestLaunchFailureIsSessionCrash(t *testing.T) {
	t.Parallel()

	launch := func(context.Context) (scrape.Session, error) {
		return nil, errors.New("chrome refused to start")
	}
	pool, err := browser.NewPool(browser.PoolConfig{Capacity: 1, AcquireTimeout: 100 * time.Millisecond}, launch, nil)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, scrape.FailureSessionCrash, scrape.KindOf(err))
}

func TestCloseShutsDownIdleSessions(t *testing.T) {
	t.Parallel()

	launch, _ := countingLauncher()
	pool, err := browser.NewPool(browser.PoolConfig{Capacity: 2, AcquireTimeout: 100 * time.Millisecond}, launch, nil)
	require.NoError(t, err)

	ctx := context.Background()
	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(s1)

	pool.Close()
	assert.True(t, s1.(*fakeSession).closed.Load())

	_, err = pool.Acquire(ctx)
	assert.Error(t, err)
}
