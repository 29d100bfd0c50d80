// retry.go - Retry logic and error categorization for Generator calls

package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/bosocmputer/ocr_gateway/internal/common"
	"google.golang.org/api/googleapi"
)

// RetryConfig defines retry behavior for Generator calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig makes exactly one attempt; retries are opt-in via GENERATOR_MAX_ATTEMPTS
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     1,
	InitialDelay:    1 * time.Second,
	MaxDelay:        8 * time.Second,
	BackoffMultiple: 2.0,
}

// GeneratorError represents a categorized Generator failure
type GeneratorError struct {
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
	Retryable     bool
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d, retryable: %v)", e.Category, e.Message, e.StatusCode, e.Retryable)
}

func (e *GeneratorError) Unwrap() error {
	return e.OriginalError
}

// statusCoder is implemented by provider errors that carry an HTTP status
type statusCoder interface {
	HTTPStatus() int
}

// categorizeError analyzes an error and determines the retry strategy
func categorizeError(err error) *GeneratorError {
	if err == nil {
		return nil
	}

	genErr := &GeneratorError{
		OriginalError: err,
		Category:      "unknown",
		Message:       err.Error(),
		Retryable:     false,
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		categorizeStatus(genErr, apiErr.Code)
		return genErr
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		categorizeStatus(genErr, sc.HTTPStatus())
		return genErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		genErr.Category = "timeout"
		genErr.Message = "Request timeout - processing took too long"
		genErr.Retryable = true
		return genErr
	}

	if errors.Is(err, context.Canceled) {
		genErr.Category = "canceled"
		genErr.Message = "Request was canceled"
		return genErr
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "permission"):
		genErr.Category = "unauthorized"
	case strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "limit"):
		genErr.Category = "quota_exceeded"
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		genErr.Category = "timeout"
		genErr.Retryable = true
	case strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network"):
		genErr.Category = "network_error"
		genErr.Retryable = true
	}

	return genErr
}

func categorizeStatus(genErr *GeneratorError, code int) {
	genErr.StatusCode = code

	switch code {
	case http.StatusBadRequest:
		genErr.Category = "bad_request"
	case http.StatusUnauthorized:
		genErr.Category = "unauthorized"
	case http.StatusForbidden:
		genErr.Category = "forbidden"
	case http.StatusNotFound:
		genErr.Category = "not_found"
	case http.StatusRequestEntityTooLarge:
		genErr.Category = "payload_too_large"
	case http.StatusTooManyRequests:
		genErr.Category = "rate_limit"
		genErr.Retryable = true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		genErr.Category = "server_error"
		genErr.Retryable = true
	default:
		genErr.Category = "unknown_api_error"
		genErr.Retryable = code >= 500
	}
}

// callWithRetry executes a Generator call with retry logic.
// The last error is returned as the provider produced it, so its message reaches
// callers unchanged.
func callWithRetry[T any](ctx context.Context, config RetryConfig, reqCtx *common.RequestContext, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 {
			reqCtx.LogInfo("Retry attempt %d/%d", attempt, config.MaxAttempts)
		}

		resp, err := call(ctx)
		if err == nil {
			if attempt > 1 {
				reqCtx.LogInfo("✅ Retry succeeded on attempt %d", attempt)
			}
			return resp, nil
		}

		lastErr = err
		genErr := categorizeError(err)

		reqCtx.LogError("Generator call failed (attempt %d/%d): %s", attempt, config.MaxAttempts, genErr.Error())

		if !genErr.Retryable || attempt >= config.MaxAttempts {
			break
		}

		delay := calculateBackoff(attempt, config)

		// Rate limits need a longer pause than transient failures
		if genErr.Category == "rate_limit" {
			delay = delay * 2
			reqCtx.LogWarning("Rate limit hit, waiting %v before retry", delay)
		} else {
			reqCtx.LogInfo("Waiting %v before retry", delay)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context canceled during retry wait: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// calculateBackoff computes exponential backoff delay
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
