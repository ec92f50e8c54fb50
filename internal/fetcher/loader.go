package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const maxBodyBytes = 10 << 20

// Page is a fetched response body.
type Page struct {
	StatusCode int
	Body       []byte
}

// PageLoader retrieves a page. Implementations honour ctx deadlines.
type PageLoader interface {
	Load(ctx context.Context, url string, header http.Header) (*Page, error)
}

// HTTPLoader loads pages with net/http. Redirects are followed.
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader creates a loader. A nil client uses a default one without a
// global timeout; callers bound each request through ctx.
func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPLoader{client: client}
}

func (l *HTTPLoader) Load(ctx context.Context, url string, header http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Page{StatusCode: resp.StatusCode, Body: body}, nil
}

// BrowserLoader renders pages in headless Chrome, one tab per load, so
// script-built search pages return their final markup.
type BrowserLoader struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewBrowserLoader starts a browser. Close must be called to stop it.
func NewBrowserLoader(userAgent string, headless bool, logger *zap.Logger) (*BrowserLoader, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	cancel := func() {
		cancelCtx()
		cancelAlloc()
	}

	// start the browser now so a missing Chrome fails at startup
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("Browser renderer started", zap.Bool("headless", headless))
	return &BrowserLoader{ctx: ctx, cancel: cancel, logger: logger}, nil
}

func (b *BrowserLoader) Load(ctx context.Context, url string, _ http.Header) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.ctx)
	defer cancelTab()

	// the tab lives under the browser context, so bind it to the caller's deadline
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithDeadline(tabCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, err
	}

	var doc string
	if err := chromedp.Run(tabCtx, chromedp.Sleep(500*time.Millisecond), chromedp.OuterHTML("html", &doc, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}

	status := http.StatusOK
	if resp != nil && resp.Status != 0 {
		status = int(resp.Status)
	}
	return &Page{StatusCode: status, Body: []byte(doc)}, nil
}

// Close stops the browser.
func (b *BrowserLoader) Close() {
	b.cancel()
}
