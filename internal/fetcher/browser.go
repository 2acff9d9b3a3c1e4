package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"elections-scraper/internal/config"
	"elections-scraper/internal/observability"
)

// BrowserFetcher renders pages in headless Chrome. The browser is started on
// the first Fetch and shared by all later calls.
type BrowserFetcher struct {
	cfg     *config.Config
	logger  *observability.Logger
	browser *rod.Browser
	mu      sync.Mutex
}

func NewBrowserFetcher(cfg *config.Config, logger *observability.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		cfg:    cfg,
		logger: logger,
	}
}

func (b *BrowserFetcher) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(b.cfg.Rod.Headless)
	if b.cfg.Rod.ChromePath != "" {
		l = l.Bin(b.cfg.Rod.ChromePath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	b.logger.Info("Browser started", "control_url", controlURL, "headless", b.cfg.Rod.Headless)
	b.browser = browser
	return browser, nil
}

func (b *BrowserFetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.logger.Warn("Failed to close browser page", "url", urlStr, "error", err.Error())
		}
	}()

	timed := page.Timeout(b.cfg.GetRodPageTimeout())

	// The main document response carries the HTTP status.
	statusCode := http.StatusOK
	wait := timed.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			statusCode = e.Response.Status
			return true
		}
		return false
	})

	if err := timed.Navigate(urlStr); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	wait()

	if err := page.Timeout(b.cfg.GetRodWaitLoadTimeout()).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	if statusCode < 200 || statusCode > 299 {
		return nil, &StatusError{URL: urlStr, StatusCode: statusCode}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page HTML: %w", err)
	}

	info, err := page.Info()
	finalURL := urlStr
	if err == nil {
		finalURL = info.URL
	}

	return &FetchResponse{
		StatusCode: statusCode,
		Body:       []byte(html),
		URL:        finalURL,
	}, nil
}

// Close shuts the browser down if it was started.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
