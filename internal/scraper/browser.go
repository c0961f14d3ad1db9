package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the chromedp launcher
type ChromeOptions struct {
	ExecPath  string
	UserAgent string
}

type chromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	once        sync.Once
}

// ChromeLauncher starts a headless Chrome per call using chromedp
func ChromeLauncher(opts ChromeOptions) BrowserLauncher {
	return func(ctx context.Context) (BrowserSession, error) {
		// Chrome execution options for container compatibility
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-software-rasterizer", true),
		)
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		if opts.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
		}

		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
		browserCtx, cancel := chromedp.NewContext(allocCtx)

		// an empty Run starts the browser so launch failures surface here
		if err := chromedp.Run(browserCtx); err != nil {
			cancel()
			allocCancel()
			return nil, err
		}

		return &chromeSession{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel}, nil
	}
}

// Render navigates, waits for waitSelector to be visible and returns the rendered document
func (s *chromeSession) Render(ctx context.Context, url, waitSelector string) (string, error) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("render %s: %w", url, ctxErr)
		}
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// Close shuts the tab and then the browser process
func (s *chromeSession) Close() {
	s.once.Do(func() {
		s.cancel()
		s.allocCancel()
	})
}
