package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"profiler-service/internal/events"
	"profiler-service/internal/evidence"
	"profiler-service/internal/extract"
	"profiler-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures emitted events.
type recorder struct {
	mu      sync.Mutex
	entries []events.Entry
}

func (r *recorder) Emit(severity events.Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, events.Entry{Severity: severity, Message: message})
}

func (r *recorder) all() []events.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Entry(nil), r.entries...)
}

// fakeLoader answers from a URL table.
type fakeLoader struct {
	mu     sync.Mutex
	pages  map[string]*Page
	errs   map[string]error
	calls  []string
	header http.Header
}

func (f *fakeLoader) Load(ctx context.Context, url string, header http.Header) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.header = header
	page, hasPage := f.pages[url]
	err := f.errs[url]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !hasPage {
		return &Page{StatusCode: http.StatusNotFound}, nil
	}
	return page, nil
}

func newTestCollector(loader PageLoader, sink Appender, emitter events.Emitter) *Collector {
	return NewCollector(
		NewDocumentFetcher(extract.NewRegistry()),
		NewWebFetcher(loader, time.Second, ""),
		NewSocialFetcher(loader, time.Second, 0),
		sink,
		emitter,
		Options{},
		zap.NewNop(),
	)
}

func TestPlatforms_QueryEncoding(t *testing.T) {
	platforms := Platforms("  jane doe ")
	require.Len(t, platforms, 15)

	byName := make(map[string]string, len(platforms))
	for _, p := range platforms {
		byName[p.Name] = p.URL
	}
	assert.Equal(t, "https://nitter.net/search?f=tweets&q=jane+doe", byName["Twitter/X"])
	assert.Equal(t, "https://www.instagram.com/explore/tags/janedoe/", byName["Instagram"])
	assert.Equal(t, "https://www.facebook.com/search/top?q=jane%20doe", byName["Facebook"])
	assert.Equal(t, "https://t.me/s/janedoe", byName["Telegram"])
	assert.Equal(t, "https://archive.4plebs.org/_/search/text/jane%20doe/", byName["4chan Archive"])
	assert.Equal(t, "https://discord.me/servers/search?q=jane+doe", byName["Discord.me"])
}

func TestWebFetcher_ScrapesVisibleText(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><body><script>x()</script><p>Example page text</p></body></html>`))
	}))
	defer srv.Close()

	f := NewWebFetcher(NewHTTPLoader(srv.Client()), time.Second, "")
	item, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, models.SourceWebPage, item.Kind)
	assert.Equal(t, srv.URL, item.Label)
	assert.Equal(t, "Example page text", item.Content)
	assert.Equal(t, 3, item.WordCount)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestWebFetcher_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		default:
			_, _ = w.Write([]byte(`<html><body><style>p{}</style></body></html>`))
		}
	}))
	defer srv.Close()

	f := NewWebFetcher(NewHTTPLoader(srv.Client()), 100*time.Millisecond, "")

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
	assert.ErrorIs(t, err, models.ErrFetchFailed)

	_, err = f.Fetch(context.Background(), srv.URL+"/slow")
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = f.Fetch(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, models.ErrEmptyContent)
}

func TestSocialFetcher_LimitedDataAndHeaders(t *testing.T) {
	loader := &fakeLoader{pages: map[string]*Page{
		"https://a.example": {StatusCode: 200, Body: []byte(`<p>short</p>`)},
		"https://b.example": {StatusCode: 200, Body: []byte(`<p>` + strings.Repeat("long text ", 20) + `</p>`)},
	}}
	f := NewSocialFetcher(loader, time.Second, 0)

	_, err := f.Fetch(context.Background(), Platform{Name: "A", URL: "https://a.example"}, "jane")
	assert.ErrorIs(t, err, models.ErrEmptyContent)
	assert.Equal(t, BrowserUserAgent, loader.header.Get("User-Agent"))
	assert.Empty(t, loader.header.Get("Accept-Encoding"))

	item, err := f.Fetch(context.Background(), Platform{Name: "B", URL: "https://b.example"}, "jane")
	require.NoError(t, err)
	assert.Equal(t, models.SourceSocial, item.Kind)
	assert.Equal(t, "B", item.Label)
	assert.Equal(t, "jane", item.Query)
	assert.Equal(t, "https://b.example", item.URL)
}

func TestCollector_Social404EmitsOneNonFatalEvent(t *testing.T) {
	store := evidence.NewStore()
	rec := &recorder{}
	loader := &fakeLoader{pages: map[string]*Page{}}

	c := newTestCollector(loader, store, rec)
	summary := c.CollectSocial(context.Background(), "jane doe")

	assert.Equal(t, Summary{Attempted: 15, Failed: 15}, summary)
	assert.Equal(t, 0, store.Len())

	entries := rec.all()
	require.Len(t, entries, 15)
	perPlatform := make(map[string]int)
	for _, e := range entries {
		assert.Equal(t, events.SeverityWarning, e.Severity)
		assert.False(t, e.Fatal())
		assert.Contains(t, e.Message, "returned status 404")
		for _, p := range Platforms("jane doe") {
			if strings.HasPrefix(e.Message, p.Name+" ") {
				perPlatform[p.Name]++
			}
		}
	}
	for _, p := range Platforms("jane doe") {
		assert.Equal(t, 1, perPlatform[p.Name], p.Name)
	}
}

func TestCollector_SocialMixedOutcomes(t *testing.T) {
	platforms := Platforms("jane")
	rich := &Page{StatusCode: 200, Body: []byte(`<div>` + strings.Repeat("jane posted something ", 20) + `</div>`)}
	loader := &fakeLoader{
		pages: map[string]*Page{
			platforms[0].URL: rich,
			platforms[1].URL: rich,
			platforms[2].URL: {StatusCode: 200, Body: []byte(`<p>tiny</p>`)},
		},
		errs: map[string]error{
			platforms[3].URL: errors.New("connection refused"),
		},
	}
	store := evidence.NewStore()
	rec := &recorder{}

	summary := newTestCollector(loader, store, rec).CollectSocial(context.Background(), "jane")
	assert.Equal(t, Summary{Attempted: 15, Collected: 2, Empty: 1, Failed: 12}, summary)
	assert.Equal(t, 2, store.Counts().Social)
	assert.Len(t, rec.all(), 15)

	for _, item := range store.Snapshot().Items {
		assert.LessOrEqual(t, models.CharCount(item.Content), models.SocialContentCap)
	}
}

func TestCollector_SocialStagger(t *testing.T) {
	loader := &fakeLoader{pages: map[string]*Page{}}
	c := NewCollector(nil, nil, NewSocialFetcher(loader, time.Second, 0), evidence.NewStore(), nil,
		Options{SocialStagger: 5 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	c.CollectSocial(context.Background(), "q")
	// 15 launches with a burst of one wait for 14 intervals
	assert.GreaterOrEqual(t, time.Since(start), 14*5*time.Millisecond)
}

func TestCollector_WebUnitsAreIsolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`<p>page ` + r.URL.Path + `</p>`))
	}))
	defer srv.Close()

	store := evidence.NewStore()
	rec := &recorder{}
	c := newTestCollector(NewHTTPLoader(srv.Client()), store, rec)

	urls := []string{srv.URL + "/a", srv.URL + "/bad", srv.URL + "/b", "http://127.0.0.1:1/refused"}
	summary := c.CollectWeb(context.Background(), urls)

	assert.Equal(t, Summary{Attempted: 4, Collected: 2, Failed: 2}, summary)
	assert.Equal(t, 2, store.Counts().WebPages)
	assert.Len(t, rec.all(), 4)
}

func TestCollector_Documents(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "letter.txt")
	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(good, []byte("Hello world"), 0o644))
	require.NoError(t, os.WriteFile(blank, []byte("   \n "), 0o644))

	store := evidence.NewStore()
	rec := &recorder{}
	c := newTestCollector(&fakeLoader{}, store, rec)

	summary := c.CollectDocuments(context.Background(), []string{good, blank, filepath.Join(dir, "photo.png")})
	assert.Equal(t, Summary{Attempted: 3, Collected: 1, Empty: 1, Failed: 1}, summary)

	items := store.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "letter.txt", items[0].Label)
	assert.Equal(t, 2, items[0].WordCount)

	severities := make(map[events.Severity]int)
	for _, e := range rec.all() {
		severities[e.Severity]++
	}
	assert.Equal(t, map[events.Severity]int{
		events.SeveritySuccess: 1,
		events.SeverityInfo:    1,
		events.SeverityWarning: 1,
	}, severities)
}
