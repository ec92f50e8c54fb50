package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"profiler-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu     sync.Mutex
	name   string
	errs   []error
	calls  int
	closed bool
}

func (f *fakeProvider) Complete(_ context.Context, _ models.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "reply from " + f.name, nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": f.name}
}

func TestMultiProvider_SingleProviderMakesOneCall(t *testing.T) {
	only := &fakeProvider{name: "a", errs: []error{errors.New("boom")}}
	c := NewMultiProviderClientFrom([]Provider{only}, 1, zap.NewNop())

	_, err := c.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, only.calls)
}

func TestMultiProvider_SwitchesAfterMaxFailures(t *testing.T) {
	first := &fakeProvider{name: "a", errs: []error{errors.New("e1"), errors.New("e2")}}
	second := &fakeProvider{name: "b"}
	c := NewMultiProviderClientFrom([]Provider{first, second}, 2, zap.NewNop())

	_, err := c.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	require.Error(t, err, "first failure stays on the current provider")

	reply, err := c.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "reply from b", reply)
	assert.Equal(t, 2, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, c.GetModelInfo()["provider_index"])
}

func TestMultiProvider_RateLimitSwitchesImmediately(t *testing.T) {
	first := &fakeProvider{name: "a", errs: []error{errors.New("groq API returned status 429: slow down")}}
	second := &fakeProvider{name: "b"}
	c := NewMultiProviderClientFrom([]Provider{first, second}, 3, zap.NewNop())

	reply, err := c.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "reply from b", reply)

	infos := c.GetProvidersInfo()
	require.Len(t, infos, 2)
	assert.Equal(t, true, infos[1]["is_current"])
}

func TestMultiProvider_NoFailoverSendsOneRequest(t *testing.T) {
	first := &fakeProvider{name: "a", errs: []error{errors.New("groq API returned status 429: slow down")}}
	second := &fakeProvider{name: "b"}
	c := NewMultiProviderClientFrom([]Provider{first, second}, 3, zap.NewNop())

	_, err := c.Complete(context.Background(), models.CompletionRequest{Prompt: "x", NoFailover: true})
	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)

	reply, err := c.Complete(context.Background(), models.CompletionRequest{Prompt: "x", NoFailover: true})
	require.NoError(t, err)
	assert.Equal(t, "reply from b", reply)
}

func TestMultiProvider_AllFail(t *testing.T) {
	a := &fakeProvider{name: "a", errs: []error{errors.New("quota exceeded")}}
	b := &fakeProvider{name: "b", errs: []error{errors.New("quota exceeded")}}
	c := NewMultiProviderClientFrom([]Provider{a, b}, 3, zap.NewNop())

	_, err := c.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "all providers failed")

	require.NoError(t, c.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestNewMultiProviderClient_RejectsEmptyAndUnknown(t *testing.T) {
	_, err := NewMultiProviderClient(MultiProviderConfig{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewMultiProviderClient(MultiProviderConfig{
		Providers: []ProviderConfig{{Type: "mystery", APIKey: "k"}},
	}, zap.NewNop())
	assert.ErrorContains(t, err, "no providers")
}

func TestNewMultiProviderClient_BuildsGroq(t *testing.T) {
	c, err := NewMultiProviderClient(MultiProviderConfig{
		Providers: []ProviderConfig{{Type: ProviderGroq, APIKey: "k", RequestsPerMinute: 60}},
	}, zap.NewNop())
	require.NoError(t, err)
	info := c.GetModelInfo()
	assert.Equal(t, "groq", info["provider"])
	assert.Equal(t, "llama-3.3-70b-versatile", info["model"])
	assert.InDelta(t, 60.0, info["rate_limit_per_minute"], 0.001)
}

func TestRateLimitedProvider_WaitsAndHonoursContext(t *testing.T) {
	p := NewRateLimitedProvider(&fakeProvider{name: "a"}, 60, zap.NewNop())

	_, err := p.Complete(context.Background(), models.CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, models.CompletionRequest{})
	assert.ErrorContains(t, err, "rate limit wait cancelled")
}
