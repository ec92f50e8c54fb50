package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"profiler-service/internal/htmltext"
	"profiler-service/internal/models"
)

const (
	// DefaultUserAgent is sent with single page scrapes.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	// BrowserUserAgent is sent with platform searches.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultWebTimeout     = 10 * time.Second
	DefaultSocialTimeout  = 15 * time.Second
	DefaultMinSocialChars = 100
)

// TextExtractor turns a local file into text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// DocumentFetcher produces evidence from local files.
type DocumentFetcher struct {
	extractor TextExtractor
	now       func() time.Time
}

func NewDocumentFetcher(extractor TextExtractor) *DocumentFetcher {
	return &DocumentFetcher{extractor: extractor, now: time.Now}
}

// Fetch extracts one file. Missing extractors and unsupported formats come
// back as models.ErrSourceUnavailable, blank text as models.ErrEmptyContent.
func (f *DocumentFetcher) Fetch(ctx context.Context, path string) (models.EvidenceItem, error) {
	name := filepath.Base(path)

	text, err := f.extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, models.ErrSourceUnavailable) {
			return models.EvidenceItem{}, err
		}
		return models.EvidenceItem{}, fmt.Errorf("%w: %s: %v", models.ErrFetchFailed, name, err)
	}
	if strings.TrimSpace(text) == "" {
		return models.EvidenceItem{}, fmt.Errorf("%w: no text found in %s", models.ErrEmptyContent, name)
	}
	return models.NewEvidenceItem(models.SourceDocument, name, text, f.now()), nil
}

// WebFetcher scrapes a single page.
type WebFetcher struct {
	loader    PageLoader
	timeout   time.Duration
	userAgent string
	now       func() time.Time
}

func NewWebFetcher(loader PageLoader, timeout time.Duration, userAgent string) *WebFetcher {
	if timeout <= 0 {
		timeout = DefaultWebTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &WebFetcher{loader: loader, timeout: timeout, userAgent: userAgent, now: time.Now}
}

// Fetch loads url and keeps its visible text. Any non-2xx status fails.
func (f *WebFetcher) Fetch(ctx context.Context, url string) (models.EvidenceItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	header := http.Header{}
	header.Set("User-Agent", f.userAgent)

	page, err := f.loader.Load(ctx, url, header)
	if err != nil {
		return models.EvidenceItem{}, fetchError(ctx, err)
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return models.EvidenceItem{}, &StatusError{StatusCode: page.StatusCode}
	}

	text, err := htmltext.PageText(page.Body)
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return models.EvidenceItem{}, fmt.Errorf("%w: no content found", models.ErrEmptyContent)
	}
	return models.NewEvidenceItem(models.SourceWebPage, url, text, f.now()), nil
}

// SocialFetcher searches one platform.
type SocialFetcher struct {
	loader   PageLoader
	timeout  time.Duration
	minChars int
	header   http.Header
	now      func() time.Time
}

func NewSocialFetcher(loader PageLoader, timeout time.Duration, minChars int) *SocialFetcher {
	if timeout <= 0 {
		timeout = DefaultSocialTimeout
	}
	if minChars <= 0 {
		minChars = DefaultMinSocialChars
	}

	// Accept-Encoding is left to the transport so bodies are decompressed
	header := http.Header{}
	header.Set("User-Agent", BrowserUserAgent)
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	header.Set("Accept-Language", "en-US,en;q=0.5")
	header.Set("Connection", "keep-alive")

	return &SocialFetcher{loader: loader, timeout: timeout, minChars: minChars, header: header, now: time.Now}
}

// Fetch searches p for query. Only a 200 response is read; text of
// minChars characters or fewer is reported as limited data.
func (f *SocialFetcher) Fetch(ctx context.Context, p Platform, query string) (models.EvidenceItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	page, err := f.loader.Load(ctx, p.URL, f.header.Clone())
	if err != nil {
		return models.EvidenceItem{}, fetchError(ctx, err)
	}
	if page.StatusCode != http.StatusOK {
		return models.EvidenceItem{}, &StatusError{StatusCode: page.StatusCode}
	}

	text, err := htmltext.SocialText(page.Body)
	if err != nil {
		return models.EvidenceItem{}, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	if models.CharCount(text) <= f.minChars {
		return models.EvidenceItem{}, fmt.Errorf("%w: limited data", models.ErrEmptyContent)
	}
	return models.NewSocialItem(p.Name, query, p.URL, text, f.now()), nil
}

// StatusError is a response with an unexpected HTTP status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("returned status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return models.ErrFetchFailed
}

// ErrTimeout marks a unit that ran past its deadline.
var ErrTimeout = fmt.Errorf("%w: timeout", models.ErrFetchFailed)

func fetchError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
}
