package service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"profiler-service/internal/events"
	"profiler-service/internal/extract"
	"profiler-service/internal/fetcher"
	"profiler-service/internal/models"
	"profiler-service/internal/persona"
	"profiler-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type pageTable map[string]string

func (t pageTable) Load(_ context.Context, url string, _ http.Header) (*fetcher.Page, error) {
	body, ok := t[url]
	if !ok {
		return &fetcher.Page{StatusCode: http.StatusNotFound}, nil
	}
	return &fetcher.Page{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []models.CompletionRequest
}

func (f *fakeModel) Complete(_ context.Context, req models.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeModel) last() models.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func newTestProfiler(t *testing.T, model Completer, pages pageTable) (*Profiler, repository.RecordStore) {
	t.Helper()
	logger := zap.NewNop()

	records, err := repository.NewFileStore(filepath.Join(t.TempDir(), "profiles"), nil, logger)
	require.NoError(t, err)

	p := NewProfiler(Config{
		Documents: fetcher.NewDocumentFetcher(extract.NewRegistry()),
		Web:       fetcher.NewWebFetcher(pages, time.Second, ""),
		Social:    fetcher.NewSocialFetcher(pages, time.Second, fetcher.DefaultMinSocialChars),
		Model:     model,
		Records:   records,
		Events:    events.NewLog(100, logger),
		Baseline: models.StructuredProfile{
			PrimaryTraits: []string{"Guarded"},
			Background:    "{subject} keeps to themselves.",
		},
	}, logger)
	t.Cleanup(p.Close)
	return p, records
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func messages(log *events.Log) []string {
	var out []string
	for _, e := range log.Since(0) {
		out = append(out, e.Message)
	}
	return out
}

func TestScan_AttachesBaselineAndSaves(t *testing.T) {
	p, records := newTestProfiler(t, nil, nil)
	ctx := context.Background()

	rec, err := p.Scan(ctx, "  Jane Doe ")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", rec.Name)

	report := p.Report()
	require.Equal(t, models.ReportStructured, report.Kind())
	assert.Equal(t, models.OriginBaseline, report.Origin)
	sp, _ := report.Structured()
	assert.Equal(t, "Jane Doe keeps to themselves.", sp.Background)

	names, err := records.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe"}, names)
	assert.Contains(t, messages(p.Events()), "Profile saved: Jane Doe")

	_, err = p.Scan(ctx, " ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

type failingSaves struct {
	repository.RecordStore
}

func (failingSaves) Save(context.Context, *models.Record) error {
	return errors.New("disk full")
}

func TestScan_RejectedNameLeavesSubjectAndReport(t *testing.T) {
	model := &fakeModel{reply: "Alice is methodical."}
	p, records := newTestProfiler(t, model, nil)
	ctx := context.Background()

	_, err := p.Scan(ctx, "Alice")
	require.NoError(t, err)
	_, err = p.Synthesize(ctx)
	require.NoError(t, err)

	_, err = p.Scan(ctx, "AC/DC")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Equal(t, "Alice", p.Snapshot().Subject)
	report := p.Report()
	assert.Equal(t, models.ReportNarrative, report.Kind())
	assert.Equal(t, models.OriginSynthesis, report.Origin)

	names, err := records.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names)
}

func TestScan_FailedSaveLeavesSubjectAndReport(t *testing.T) {
	p, records := newTestProfiler(t, nil, nil)
	ctx := context.Background()

	_, err := p.Scan(ctx, "Alice")
	require.NoError(t, err)
	before := p.Snapshot()

	p.records = failingSaves{records}
	_, err = p.Scan(ctx, "Bob")
	require.Error(t, err)

	after := p.Snapshot()
	assert.Equal(t, "Alice", after.Subject)
	assert.True(t, before.ScannedAt.Equal(after.ScannedAt))
	assert.Equal(t, models.OriginBaseline, p.Report().Origin)
	sp, _ := p.Report().Structured()
	assert.Equal(t, "Alice keeps to themselves.", sp.Background)
}

func TestCollectAndSynthesize(t *testing.T) {
	model := &fakeModel{reply: "Jane is a patient strategist."}
	pages := pageTable{"https://example.com/jane": "<html><body><p>Jane plays chess every Sunday</p></body></html>"}
	p, _ := newTestProfiler(t, model, pages)
	ctx := context.Background()

	_, err := p.Scan(ctx, "Jane")
	require.NoError(t, err)

	doc := writeFile(t, "letter.txt", "Dear friend, I moved to Lisbon.")
	sum, err := p.CollectDocuments(ctx, []string{doc, " "})
	require.NoError(t, err)
	assert.Equal(t, fetcher.Summary{Attempted: 1, Collected: 1}, sum)

	sum, err = p.CollectWeb(ctx, []string{"https://example.com/jane"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Collected)

	assert.Equal(t, models.EvidenceCounts{Documents: 1, WebPages: 1}, p.Counts())

	report, err := p.Synthesize(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ReportNarrative, report.Kind())
	assert.Equal(t, models.ReportNarrative, p.Report().Kind())

	req := model.last()
	assert.Contains(t, req.Prompt, "Jane")
	assert.Contains(t, req.Prompt, "Lisbon")
	assert.Contains(t, req.Prompt, "chess")

	board := p.Board()
	assert.Contains(t, board, "PSYCHOLOGICAL PROFILE: JANE")
	assert.Contains(t, board, "Jane is a patient strategist.")
	assert.Contains(t, messages(p.Events()), "AI analysis complete")
}

func TestSynthesize_FailureKeepsPreviousReport(t *testing.T) {
	model := &fakeModel{err: errors.New("upstream 500")}
	p, _ := newTestProfiler(t, model, nil)
	ctx := context.Background()

	_, err := p.Scan(ctx, "Jane")
	require.NoError(t, err)

	_, err = p.Synthesize(ctx)
	assert.ErrorIs(t, err, models.ErrSynthesisFailed)
	assert.Equal(t, models.ReportStructured, p.Report().Kind())

	entries := p.Events().Since(0)
	last := entries[len(entries)-1]
	assert.Equal(t, events.SeverityError, last.Severity)
	assert.True(t, last.Fatal())
}

func TestSynthesize_WithoutModel(t *testing.T) {
	p, _ := newTestProfiler(t, nil, nil)
	_, err := p.Scan(context.Background(), "Jane")
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background())
	assert.ErrorIs(t, err, models.ErrModelUnavailable)

	_, err = p.Synchronize()
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestPersonaConversation(t *testing.T) {
	model := &fakeModel{reply: "Why do you ask?"}
	p, _ := newTestProfiler(t, model, nil)
	ctx := context.Background()

	_, err := p.Synchronize()
	assert.ErrorIs(t, err, models.ErrSessionPrecondition)
	_, err = p.SendTurn(ctx, "hello")
	assert.ErrorIs(t, err, models.ErrSessionInactive)

	_, err = p.Scan(ctx, "Jane")
	require.NoError(t, err)

	state, err := p.Synchronize()
	require.NoError(t, err)
	assert.Equal(t, persona.StatusActive, state.Status)
	assert.Equal(t, "structured", state.ReportKind)
	assert.Contains(t, state.Instruction, "Guarded")

	reply, err := p.SendTurn(ctx, "Where were you last night?")
	require.NoError(t, err)
	assert.Equal(t, "Why do you ask?", reply)
	assert.Len(t, p.Persona().History, 2)
	assert.Equal(t, state.Instruction, model.last().System)
}

func TestSaveAndLoadRecord(t *testing.T) {
	model := &fakeModel{reply: "narrative"}
	p, _ := newTestProfiler(t, model, nil)
	ctx := context.Background()

	_, err := p.SaveRecord(ctx)
	assert.ErrorIs(t, err, models.ErrSessionPrecondition)

	_, err = p.Scan(ctx, "Jane")
	require.NoError(t, err)
	_, err = p.CollectDocuments(ctx, []string{writeFile(t, "a.txt", "first note")})
	require.NoError(t, err)
	_, err = p.Synthesize(ctx)
	require.NoError(t, err)
	_, err = p.SaveRecord(ctx)
	require.NoError(t, err)

	other, _ := newTestProfiler(t, nil, nil)
	_, err = other.LoadRecord(ctx, "Jane")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	rec, err := p.LoadRecord(ctx, "Jane")
	require.NoError(t, err)
	assert.Len(t, rec.Items(), 1)

	snap := p.Snapshot()
	assert.Equal(t, "Jane", snap.Subject)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "first note", snap.Items[0].Content)
	assert.Equal(t, models.OriginRecord, p.Report().Origin)

	names, err := p.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane"}, names)

	require.NoError(t, p.DeleteRecord(ctx, "Jane"))
	assert.ErrorIs(t, p.DeleteRecord(ctx, "Jane"), models.ErrRecordNotFound)
}

func TestDispatch_RunsInBackgroundAndStopsAfterClose(t *testing.T) {
	p, _ := newTestProfiler(t, nil, nil)

	paths := []string{writeFile(t, "a.txt", "alpha"), writeFile(t, "b.txt", "beta")}
	require.NoError(t, p.DispatchDocuments(paths))
	p.Wait()
	assert.Equal(t, 2, p.Counts().Documents)

	assert.ErrorIs(t, p.DispatchWeb(nil), models.ErrInvalidInput)
	assert.ErrorIs(t, p.DispatchSocial(""), models.ErrInvalidInput)

	p.Close()
	assert.ErrorIs(t, p.DispatchDocuments(paths), ErrClosed)
}

func TestCollectSocial_FallsBackToSubject(t *testing.T) {
	p, _ := newTestProfiler(t, nil, nil)
	ctx := context.Background()

	_, err := p.CollectSocial(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = p.Scan(ctx, "Jane")
	require.NoError(t, err)

	sum, err := p.CollectSocial(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, len(fetcher.Platforms("Jane")), sum.Attempted)
	assert.Equal(t, sum.Attempted, sum.Failed)

	var warnings int
	for _, e := range p.Events().Since(0) {
		if e.Severity == events.SeverityWarning && strings.Contains(e.Message, "returned status 404") {
			warnings++
		}
	}
	assert.Equal(t, sum.Attempted, warnings)
}
