package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"profiler-service/internal/assembler"
	"profiler-service/internal/models"

	"go.uber.org/zap"
)

const (
	Temperature float32 = 0.2
	MaxTokens           = 4000
)

// Completer is the generative model used for synthesis.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// Requester turns an evidence snapshot into a narrative profile report with
// a single model request.
type Requester struct {
	client Completer
	logger *zap.Logger
	now    func() time.Time
}

func NewRequester(client Completer, logger *zap.Logger) *Requester {
	return &Requester{client: client, logger: logger, now: time.Now}
}

// Request renders items for subject and asks the model for a report. It
// never retries; a failed or blank answer yields models.ErrSynthesisFailed
// and no report.
func (r *Requester) Request(ctx context.Context, subject string, items []models.EvidenceItem) (models.ProfileReport, error) {
	if r.client == nil {
		return models.ProfileReport{}, models.ErrModelUnavailable
	}
	if strings.TrimSpace(subject) == "" {
		return models.ProfileReport{}, fmt.Errorf("%w: no subject to analyze", models.ErrSessionPrecondition)
	}

	prompt := assembler.SynthesisPrompt(subject, items)
	r.logger.Info("Requesting profile synthesis",
		zap.String("subject", subject),
		zap.Int("items", len(items)),
		zap.Int("prompt_chars", models.CharCount(prompt)))

	text, err := r.client.Complete(ctx, models.CompletionRequest{
		System:      assembler.AnalystRole,
		Prompt:      prompt,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		NoFailover:  true,
	})
	if err != nil {
		return models.ProfileReport{}, fmt.Errorf("%w: %v", models.ErrSynthesisFailed, err)
	}

	report, err := models.NewNarrativeReport(text, models.OriginSynthesis, r.now())
	if err != nil {
		return models.ProfileReport{}, fmt.Errorf("%w: model returned no analysis", models.ErrSynthesisFailed)
	}
	return report, nil
}
