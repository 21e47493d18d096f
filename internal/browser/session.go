package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/crickstats/cricsync/internal/scrape"
)

// ChromeConfig controls the chromedp-backed session launcher.
type ChromeConfig struct {
	UserAgent  string
	NavTimeout time.Duration
}

// NewChromeLauncher builds a LaunchFunc backed by a shared headless Chrome
// allocator. The returned cleanup cancels the allocator and must be called
// after the pool is closed.
func NewChromeLauncher(cfg ChromeConfig) (LaunchFunc, func()) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	launch := func(ctx context.Context) (scrape.Session, error) {
		taskCtx, taskCancel := chromedp.NewContext(allocCtx)
		s := &chromeSession{
			id:     uuid.NewString(),
			ctx:    taskCtx,
			cancel: taskCancel,
		}
		if cfg.UserAgent != "" {
			if err := s.run(ctx, cfg.NavTimeout, emulationAction(cfg.UserAgent)); err != nil {
				taskCancel()
				return nil, fmt.Errorf("set user-agent: %w", err)
			}
		}
		return s, nil
	}
	return launch, allocCancel
}

func emulationAction(userAgent string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
			return fmt.Errorf("user-agent override: %w", err)
		}
		return nil
	})
}

// chromeSession implements scrape.Session over one chromedp tab.
type chromeSession struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the session identifier.
func (s *chromeSession) ID() string { return s.id }

// Navigate issues the page load without waiting for content stability;
// the navigator follows up with WaitFor on a DOM marker.
func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 0, chromedp.Navigate(url))
}

// WaitFor blocks until the selector is visible or the timeout elapses.
func (s *chromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Click clicks the first element matching the selector.
func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

// ReadDOM returns the rendered document as HTML.
func (s *chromeSession) ReadDOM(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close cancels the tab context, forcibly aborting any in-flight action.
func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

// run executes actions on the tab context while honoring the caller's
// context for cancellation. chromedp actions must run on the session
// context, so caller cancellation is bridged by cancelling the derived
// run context.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := s.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("session action canceled: %w", ctx.Err())
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("session action timed out after %s: %w", timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}
