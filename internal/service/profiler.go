package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"profiler-service/internal/assembler"
	"profiler-service/internal/events"
	"profiler-service/internal/evidence"
	"profiler-service/internal/fetcher"
	"profiler-service/internal/models"
	"profiler-service/internal/persona"
	"profiler-service/internal/repository"
	"profiler-service/internal/synthesis"

	"go.uber.org/zap"
)

// ErrClosed is returned by Dispatch calls after Close.
var ErrClosed = errors.New("profiler is closed")

// Completer is any generative model client
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// Config wires the engine's collaborators.
type Config struct {
	Documents *fetcher.DocumentFetcher
	Web       *fetcher.WebFetcher
	Social    *fetcher.SocialFetcher
	Fetch     fetcher.Options

	// Model may be nil; synthesis and persona calls then fail with
	// models.ErrModelUnavailable.
	Model    Completer
	Records  repository.RecordStore
	Events   *events.Log
	Baseline models.StructuredProfile
}

// Profiler drives one subject at a time: evidence collection into the
// store, synthesis of a report and the persona conversation.
type Profiler struct {
	store     *evidence.Store
	collector *fetcher.Collector
	requester *synthesis.Requester
	session   *persona.Session
	records   repository.RecordStore
	events    *events.Log
	baseline  models.StructuredProfile
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex
	report models.ProfileReport

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewProfiler creates the engine
func NewProfiler(cfg Config, logger *zap.Logger) *Profiler {
	log := cfg.Events
	if log == nil {
		log = events.NewLog(0, logger)
	}

	var model synthesis.Completer
	var personaModel persona.Completer
	if cfg.Model != nil {
		model = cfg.Model
		personaModel = cfg.Model
	}

	store := evidence.NewStore()
	ctx, cancel := context.WithCancel(context.Background())

	return &Profiler{
		store:     store,
		collector: fetcher.NewCollector(cfg.Documents, cfg.Web, cfg.Social, store, log, cfg.Fetch, logger),
		requester: synthesis.NewRequester(model, logger),
		session:   persona.NewSession(personaModel, logger),
		records:   cfg.Records,
		events:    log,
		baseline:  cfg.Baseline,
		logger:    logger,
		now:       time.Now,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Events returns the engine's event log.
func (p *Profiler) Events() *events.Log {
	return p.events
}

// Scan names the subject, stamps the scan time, attaches the baseline
// report and saves the record. Evidence already collected is kept. The
// record is saved before the store and report change, so a failed scan
// leaves the previous subject and report in place.
func (p *Profiler) Scan(ctx context.Context, subject string) (*models.Record, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject name is required", models.ErrInvalidInput)
	}
	if p.records != nil {
		if err := repository.ValidateName(subject); err != nil {
			return nil, err
		}
	}

	now := p.now()
	p.events.Emit(events.SeverityInfo, fmt.Sprintf("Scanning for '%s'...", subject))

	baseline := p.baseline
	baseline.Background = strings.ReplaceAll(baseline.Background, "{subject}", subject)
	report := models.NewStructuredReport(baseline, models.OriginBaseline, now)
	rec := models.NewRecord(subject, now, p.store.Snapshot().Items, report)

	if p.records != nil {
		if err := p.persist(ctx, rec); err != nil {
			return nil, err
		}
	}
	p.store.Begin(subject, now)
	p.setReport(report)

	counts := p.store.Counts()
	p.logger.Info("Scan started",
		zap.String("subject", subject),
		zap.Int("documents", counts.Documents),
		zap.Int("web_pages", counts.WebPages),
		zap.Int("social", counts.Social))

	if p.records != nil {
		p.events.Emit(events.SeveritySuccess, "Target data saved successfully")
	}
	return rec, nil
}

// CollectDocuments extracts the given files into the store and waits.
func (p *Profiler) CollectDocuments(ctx context.Context, paths []string) (fetcher.Summary, error) {
	paths = nonBlank(paths)
	if len(paths) == 0 {
		return fetcher.Summary{}, fmt.Errorf("%w: no documents given", models.ErrInvalidInput)
	}
	p.events.Emit(events.SeverityInfo, fmt.Sprintf("Processing %d document(s)...", len(paths)))
	return p.collector.CollectDocuments(ctx, paths), nil
}

// CollectWeb scrapes the given URLs into the store and waits.
func (p *Profiler) CollectWeb(ctx context.Context, urls []string) (fetcher.Summary, error) {
	urls = nonBlank(urls)
	if len(urls) == 0 {
		return fetcher.Summary{}, fmt.Errorf("%w: no URLs given", models.ErrInvalidInput)
	}
	p.events.Emit(events.SeverityInfo, fmt.Sprintf("Scraping %d URL(s)...", len(urls)))
	return p.collector.CollectWeb(ctx, urls), nil
}

// CollectSocial searches every platform for query, falling back to the
// subject's name, and waits.
func (p *Profiler) CollectSocial(ctx context.Context, query string) (fetcher.Summary, error) {
	query, err := p.socialQuery(query)
	if err != nil {
		return fetcher.Summary{}, err
	}
	p.events.Emit(events.SeverityInfo, fmt.Sprintf("Searching social media for '%s'...", query))
	return p.collector.CollectSocial(ctx, query), nil
}

func (p *Profiler) socialQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = p.store.Subject()
	}
	if query == "" {
		return "", fmt.Errorf("%w: search query or subject name is required", models.ErrInvalidInput)
	}
	return query, nil
}

// DispatchDocuments runs CollectDocuments in the background.
func (p *Profiler) DispatchDocuments(paths []string) error {
	paths = nonBlank(paths)
	if len(paths) == 0 {
		return fmt.Errorf("%w: no documents given", models.ErrInvalidInput)
	}
	return p.dispatch("documents", func(ctx context.Context) {
		_, _ = p.CollectDocuments(ctx, paths)
	})
}

// DispatchWeb runs CollectWeb in the background.
func (p *Profiler) DispatchWeb(urls []string) error {
	urls = nonBlank(urls)
	if len(urls) == 0 {
		return fmt.Errorf("%w: no URLs given", models.ErrInvalidInput)
	}
	return p.dispatch("web", func(ctx context.Context) {
		_, _ = p.CollectWeb(ctx, urls)
	})
}

// DispatchSocial runs CollectSocial in the background.
func (p *Profiler) DispatchSocial(query string) error {
	query, err := p.socialQuery(query)
	if err != nil {
		return err
	}
	return p.dispatch("social", func(ctx context.Context) {
		_, _ = p.CollectSocial(ctx, query)
	})
}

func (p *Profiler) dispatch(kind string, run func(ctx context.Context)) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return ErrClosed
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		run(p.baseCtx)
		p.logger.Debug("Dispatched collection finished", zap.String("kind", kind))
	}()
	return nil
}

// Wait blocks until every dispatched collection has finished.
func (p *Profiler) Wait() {
	p.wg.Wait()
}

// Close cancels dispatched collections and waits for them.
func (p *Profiler) Close() {
	p.closeMu.Lock()
	p.closed = true
	p.closeMu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Synthesize asks the model for a narrative report over the current
// evidence. On failure the previous report is kept.
func (p *Profiler) Synthesize(ctx context.Context) (models.ProfileReport, error) {
	snap := p.store.Snapshot()
	p.events.Emit(events.SeverityInfo, "Generating AI analysis...")

	report, err := p.requester.Request(ctx, snap.Subject, snap.Items)
	if err != nil {
		p.events.Emit(events.SeverityError, fmt.Sprintf("AI analysis failed: %v", err))
		return models.ProfileReport{}, err
	}

	p.setReport(report)
	p.events.Emit(events.SeveritySuccess, "AI analysis complete")
	return report, nil
}

// Report returns the current profile report, zero if none.
func (p *Profiler) Report() models.ProfileReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.report
}

func (p *Profiler) setReport(r models.ProfileReport) {
	p.mu.Lock()
	p.report = r
	p.mu.Unlock()
}

// Board renders the current report as display text.
func (p *Profiler) Board() string {
	snap := p.store.Snapshot()
	return assembler.FormatReport(snap.Subject, p.Report(), snap.Counts(), p.now())
}

// Synchronize seeds the persona session from the current evidence and report.
func (p *Profiler) Synchronize() (persona.State, error) {
	snap := p.store.Snapshot()
	if err := p.session.Synchronize(snap.Subject, snap.Items, p.Report()); err != nil {
		p.events.Emit(events.SeverityError, fmt.Sprintf("Persona synchronization failed: %v", err))
		return persona.State{}, err
	}
	p.events.Emit(events.SeveritySuccess, fmt.Sprintf("Persona synchronized with %s", snap.Subject))
	return p.session.State(), nil
}

// SendTurn sends one user message to the persona and returns the reply.
func (p *Profiler) SendTurn(ctx context.Context, text string) (string, error) {
	reply, err := p.session.SendTurn(ctx, text)
	if err != nil {
		p.events.Emit(events.SeverityError, fmt.Sprintf("Persona turn failed: %v", err))
		return "", err
	}
	return reply, nil
}

// Persona returns the session state.
func (p *Profiler) Persona() persona.State {
	return p.session.State()
}

// Counts returns evidence counts by kind.
func (p *Profiler) Counts() models.EvidenceCounts {
	return p.store.Counts()
}

// Snapshot returns a copy of the evidence store.
func (p *Profiler) Snapshot() evidence.Snapshot {
	return p.store.Snapshot()
}

// SaveRecord persists the current subject, evidence and report.
func (p *Profiler) SaveRecord(ctx context.Context) (*models.Record, error) {
	if p.records == nil {
		return nil, fmt.Errorf("%w: no record store configured", models.ErrSourceUnavailable)
	}
	snap := p.store.Snapshot()
	if snap.Subject == "" {
		return nil, fmt.Errorf("%w: no subject to save", models.ErrSessionPrecondition)
	}

	rec := models.NewRecord(snap.Subject, snap.ScannedAt, snap.Items, p.Report())
	if err := p.persist(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Profiler) persist(ctx context.Context, rec *models.Record) error {
	if err := p.records.Save(ctx, rec); err != nil {
		p.events.Emit(events.SeverityError, fmt.Sprintf("Failed to save profile %s: %v", rec.Name, err))
		return err
	}
	p.events.Emit(events.SeveritySuccess, fmt.Sprintf("Profile saved: %s", rec.Name))
	return nil
}

// LoadRecord replaces the store and report with a saved record.
func (p *Profiler) LoadRecord(ctx context.Context, name string) (*models.Record, error) {
	if p.records == nil {
		return nil, fmt.Errorf("%w: no record store configured", models.ErrSourceUnavailable)
	}
	rec, err := p.records.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	p.store.Replace(rec.Name, rec.Items(), rec.ScannedAt())
	p.setReport(rec.Report())

	p.events.Emit(events.SeveritySuccess, fmt.Sprintf("Loaded profile: %s", rec.Name))
	return rec, nil
}

// ListRecords returns saved record names in order.
func (p *Profiler) ListRecords(ctx context.Context) ([]string, error) {
	if p.records == nil {
		return nil, fmt.Errorf("%w: no record store configured", models.ErrSourceUnavailable)
	}
	return p.records.List(ctx)
}

// DeleteRecord removes a saved record.
func (p *Profiler) DeleteRecord(ctx context.Context, name string) error {
	if p.records == nil {
		return fmt.Errorf("%w: no record store configured", models.ErrSourceUnavailable)
	}
	if err := p.records.Delete(ctx, name); err != nil {
		return err
	}
	p.events.Emit(events.SeverityInfo, fmt.Sprintf("Deleted profile: %s", name))
	return nil
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
