package llm

import (
	"context"
	"fmt"
	"time"

	"profiler-service/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultRequestsPerMinute = 30

// RateLimitedProvider wraps a provider with a token bucket.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewRateLimitedProvider allows requestsPerMinute calls with a burst of one.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Complete(ctx, req)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	info := p.provider.GetModelInfo()
	info["rate_limit_per_minute"] = float64(p.limiter.Limit()) * 60
	return info
}
