// Package gateway holds the request pipeline between the HTTP routes and the Generator:
// access-key gating, image payload normalization and OCR instruction construction.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bosocmputer/ocr_gateway/internal/ai"
	"github.com/bosocmputer/ocr_gateway/internal/common"
	"github.com/bosocmputer/ocr_gateway/internal/processor"
)

// Options configures a Dispatcher
type Options struct {
	// ValidationMaxTokens caps the key check completion
	ValidationMaxTokens int32
	// OCRMaxTokens caps the Markdown extraction
	OCRMaxTokens int32
	// Timeout bounds each Generator call; zero means no extra deadline
	Timeout time.Duration
	// ImagePrefixes are the data-URI prefixes stripped from image payloads
	ImagePrefixes []string
}

// Response is what a route sends back: a status and a plain-text body
type Response struct {
	Status int
	Body   string
}

// Dispatcher serves the two gateway operations.
// It holds no per-request state and is shared by all requests.
type Dispatcher struct {
	generator    ai.Generator
	validator    *KeyValidator
	normalizer   *processor.PayloadNormalizer
	ocrMaxTokens int32
	timeout      time.Duration
}

// NewDispatcher creates a dispatcher over the given Generator
func NewDispatcher(generator ai.Generator, opts Options) *Dispatcher {
	return &Dispatcher{
		generator:    generator,
		validator:    NewKeyValidator(generator, opts.ValidationMaxTokens),
		normalizer:   processor.NewPayloadNormalizer(opts.ImagePrefixes),
		ocrMaxTokens: opts.OCRMaxTokens,
		timeout:      opts.Timeout,
	}
}

// ValidateAPIKey answers 200 for a key the Generator accepts, 401 for one it refuses
// and 400 when no key was sent.
func (d *Dispatcher) ValidateAPIKey(ctx context.Context, apiKey string, reqCtx *common.RequestContext) Response {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	reqCtx.StartStep("validate_key")
	err := d.validator.Validate(ctx, apiKey, reqCtx)
	if err != nil {
		reqCtx.EndStep("rejected", nil, err)
		return errorResponse(err)
	}
	reqCtx.EndStep("success", nil, nil)

	return Response{Status: http.StatusOK, Body: msgValidKey}
}

// ExtractTextFromImage runs OCR over image and answers with the Generator's Markdown.
// Caller mistakes are rejected before the Generator is contacted; a failed vision call
// answers 400 with the Generator's own error message.
func (d *Dispatcher) ExtractTextFromImage(ctx context.Context, image, apiKey string, reqCtx *common.RequestContext) Response {
	reqCtx.StartStep("validate_input")
	if isBlank(apiKey) {
		err := reject(MissingKey, nil)
		reqCtx.EndStep("rejected", nil, err)
		return errorResponse(err)
	}
	if isBlank(image) {
		err := reject(MissingImage, nil)
		reqCtx.EndStep("rejected", nil, err)
		return errorResponse(err)
	}
	reqCtx.EndStep("success", nil, nil)

	reqCtx.StartStep("normalize_image")
	payload := d.normalizer.Normalize(image)
	if payload == "" {
		// Nothing but a prefix was sent
		err := reject(MissingImage, nil)
		reqCtx.EndStep("rejected", nil, err)
		return errorResponse(err)
	}
	reqCtx.EndStep("success", nil, nil)

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	reqCtx.StartStep("extract_markdown")
	text, err := d.generator.CompleteVision(ctx, ai.VisionRequest{
		TextRequest: ai.TextRequest{
			APIKey:      apiKey,
			Instruction: ai.BuildOCRInstruction(),
			Prompt:      ai.BuildOCRPrompt(),
			Stream:      false,
			MaxTokens:   d.ocrMaxTokens,
		},
		ImageBase64: payload,
	}, reqCtx)
	if err != nil {
		rejected := reject(BackendFailure, err)
		reqCtx.EndStep("failed", nil, rejected)
		return errorResponse(rejected)
	}
	reqCtx.EndStep("success", nil, nil)

	return Response{Status: http.StatusOK, Body: text}
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func errorResponse(err error) Response {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return Response{Status: rejected.Kind.StatusCode(), Body: rejected.Error()}
	}
	return Response{Status: http.StatusBadRequest, Body: err.Error()}
}
