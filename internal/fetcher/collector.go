package fetcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"profiler-service/internal/events"
	"profiler-service/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Appender receives successfully fetched items.
type Appender interface {
	Append(item models.EvidenceItem)
}

// Summary counts the outcomes of one collection.
type Summary struct {
	Attempted int `json:"attempted"`
	Collected int `json:"collected"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`
}

// Options tune a Collector.
type Options struct {
	SocialStagger  time.Duration
	MaxConcurrency int
}

// Collector runs one worker per unit of work. A unit's failure is reported
// as an event and never stops the others.
type Collector struct {
	documents *DocumentFetcher
	web       *WebFetcher
	social    *SocialFetcher
	sink      Appender
	emitter   events.Emitter
	logger    *zap.Logger
	opts      Options
}

func NewCollector(
	documents *DocumentFetcher,
	web *WebFetcher,
	social *SocialFetcher,
	sink Appender,
	emitter events.Emitter,
	opts Options,
	logger *zap.Logger,
) *Collector {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Collector{
		documents: documents,
		web:       web,
		social:    social,
		sink:      sink,
		emitter:   emitter,
		logger:    logger,
		opts:      opts,
	}
}

type tally struct {
	mu sync.Mutex
	s  Summary
}

func (t *tally) add(f func(*Summary)) {
	t.mu.Lock()
	f(&t.s)
	t.mu.Unlock()
}

func (c *Collector) group() *errgroup.Group {
	g := &errgroup.Group{}
	if c.opts.MaxConcurrency > 0 {
		g.SetLimit(c.opts.MaxConcurrency)
	}
	return g
}

// CollectDocuments extracts every path concurrently.
func (c *Collector) CollectDocuments(ctx context.Context, paths []string) Summary {
	c.logger.Info("Processing documents", zap.Int("count", len(paths)))

	var t tally
	g := c.group()
	for _, path := range paths {
		g.Go(func() error {
			item, err := c.documents.Fetch(ctx, path)
			c.settle(&t, item, err,
				func(item models.EvidenceItem) string {
					return fmt.Sprintf("Extracted %d words from %s", item.WordCount, item.Label)
				},
				func(err error) string {
					if errors.Is(err, models.ErrEmptyContent) {
						return fmt.Sprintf("No text found in %s", filepath.Base(path))
					}
					return fmt.Sprintf("Error processing %s: %v", filepath.Base(path), err)
				})
			return nil
		})
	}
	_ = g.Wait()

	c.logSummary("documents", t.s)
	return t.s
}

// CollectWeb scrapes every URL concurrently.
func (c *Collector) CollectWeb(ctx context.Context, urls []string) Summary {
	c.logger.Info("Scraping web pages", zap.Int("count", len(urls)))

	var t tally
	g := c.group()
	for _, u := range urls {
		g.Go(func() error {
			item, err := c.web.Fetch(ctx, u)
			c.settle(&t, item, err,
				func(item models.EvidenceItem) string {
					return fmt.Sprintf("Scraped %d words from %s", item.WordCount, shorten(u, 50))
				},
				func(err error) string {
					if errors.Is(err, models.ErrEmptyContent) {
						return fmt.Sprintf("No content found at %s", u)
					}
					return fmt.Sprintf("Scraping failed for %s: %v", u, err)
				})
			return nil
		})
	}
	_ = g.Wait()

	c.logSummary("web", t.s)
	return t.s
}

// CollectSocial searches every platform for query. Launches are spaced by
// the configured stagger; a cancelled ctx stops the spacing, not the units.
func (c *Collector) CollectSocial(ctx context.Context, query string) Summary {
	platforms := Platforms(query)
	c.logger.Info("Starting social media search",
		zap.String("query", query),
		zap.Int("platforms", len(platforms)))

	limit := rate.Inf
	if c.opts.SocialStagger > 0 {
		limit = rate.Every(c.opts.SocialStagger)
	}
	limiter := rate.NewLimiter(limit, 1)

	var t tally
	g := c.group()
	for _, p := range platforms {
		_ = limiter.Wait(ctx)
		g.Go(func() error {
			item, err := c.social.Fetch(ctx, p, query)
			c.settle(&t, item, err,
				func(item models.EvidenceItem) string {
					return fmt.Sprintf("Found %d words on %s", item.WordCount, p.Name)
				},
				func(err error) string {
					var status *StatusError
					switch {
					case errors.Is(err, models.ErrEmptyContent):
						return fmt.Sprintf("Limited data from %s", p.Name)
					case errors.As(err, &status):
						return fmt.Sprintf("%s returned status %d", p.Name, status.StatusCode)
					case errors.Is(err, ErrTimeout):
						return fmt.Sprintf("Timeout searching %s", p.Name)
					default:
						return fmt.Sprintf("%s search failed: %v", p.Name, err)
					}
				})
			return nil
		})
	}
	_ = g.Wait()

	c.logSummary("social", t.s)
	return t.s
}

// settle records exactly one outcome event for a unit.
func (c *Collector) settle(
	t *tally,
	item models.EvidenceItem,
	err error,
	success func(models.EvidenceItem) string,
	failure func(error) string,
) {
	switch {
	case err == nil:
		c.sink.Append(item)
		t.add(func(s *Summary) { s.Attempted++; s.Collected++ })
		c.emitter.Emit(events.SeveritySuccess, success(item))
	case errors.Is(err, models.ErrEmptyContent):
		t.add(func(s *Summary) { s.Attempted++; s.Empty++ })
		c.emitter.Emit(events.SeverityInfo, failure(err))
	default:
		t.add(func(s *Summary) { s.Attempted++; s.Failed++ })
		c.emitter.Emit(events.SeverityWarning, failure(err))
	}
}

func (c *Collector) logSummary(kind string, s Summary) {
	c.logger.Info("Collection finished",
		zap.String("kind", kind),
		zap.Int("attempted", s.Attempted),
		zap.Int("collected", s.Collected),
		zap.Int("empty", s.Empty),
		zap.Int("failed", s.Failed))
}

func shorten(s string, n int) string {
	if models.CharCount(s) <= n {
		return s
	}
	return models.TruncateChars(s, n) + "..."
}
