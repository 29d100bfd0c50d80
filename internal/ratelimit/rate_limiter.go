// rate_limiter.go - Rate limiting for Generator calls to stay under provider quotas

package ratelimit

import (
	"context"
	"fmt"

	"github.com/bosocmputer/ocr_gateway/internal/ai"
	"github.com/bosocmputer/ocr_gateway/internal/common"
	"golang.org/x/time/rate"
)

var _ ai.Generator = (*LimitedGenerator)(nil)

// LimitedGenerator waits on a shared token bucket before every Generator call
type LimitedGenerator struct {
	limiter  *rate.Limiter
	provider ai.Generator
}

// NewLimitedGenerator wraps provider with a limiter allowing perSecond calls with the given burst.
// A non-positive rate disables limiting and returns provider unchanged.
func NewLimitedGenerator(perSecond float64, burst int, provider ai.Generator) ai.Generator {
	if perSecond <= 0 {
		return provider
	}
	if burst < 1 {
		burst = 1
	}

	return &LimitedGenerator{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		provider: provider,
	}
}

// GetProviderName returns the wrapped provider's name
func (l *LimitedGenerator) GetProviderName() string {
	return l.provider.GetProviderName()
}

// CompleteText waits for a token, then delegates
func (l *LimitedGenerator) CompleteText(ctx context.Context, req ai.TextRequest, reqCtx *common.RequestContext) (string, error) {
	if err := l.wait(ctx, reqCtx); err != nil {
		return "", err
	}
	return l.provider.CompleteText(ctx, req, reqCtx)
}

// CompleteVision waits for a token, then delegates
func (l *LimitedGenerator) CompleteVision(ctx context.Context, req ai.VisionRequest, reqCtx *common.RequestContext) (string, error) {
	if err := l.wait(ctx, reqCtx); err != nil {
		return "", err
	}
	return l.provider.CompleteVision(ctx, req, reqCtx)
}

func (l *LimitedGenerator) wait(ctx context.Context, reqCtx *common.RequestContext) error {
	reqCtx.StartSubStep("wait_rate_limiter")
	err := l.limiter.Wait(ctx)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return fmt.Errorf("rate limiter: %w", err)
	}
	reqCtx.EndSubStep("")
	return nil
}
