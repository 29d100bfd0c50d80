// interface.go - Generator interface for the text and vision completion backends

package ai

import (
	"context"

	"github.com/bosocmputer/ocr_gateway/internal/common"
)

// Generator is the generative backend consumed by the gateway.
// Keys are supplied per call; a Generator never stores or checks them itself.
// Implementations must be safe for concurrent use.
type Generator interface {
	// CompleteText runs a text-only completion and returns the generated text.
	CompleteText(ctx context.Context, req TextRequest, reqCtx *common.RequestContext) (string, error)

	// CompleteVision runs a completion over a bare base64 image and returns the generated text.
	CompleteVision(ctx context.Context, req VisionRequest, reqCtx *common.RequestContext) (string, error)

	// GetProviderName returns the name of the provider (e.g., "gemini", "mistral")
	GetProviderName() string
}

// TextRequest holds the inputs of a text completion
type TextRequest struct {
	APIKey      string
	Instruction string
	Prompt      string
	Stream      bool
	MaxTokens   int32
}

// VisionRequest holds the inputs of a vision completion.
// ImageBase64 must already be stripped of any data-URI prefix.
type VisionRequest struct {
	TextRequest
	ImageBase64 string
}

// GeneratorConfig contains configuration shared by Generator providers
type GeneratorConfig struct {
	// Provider name: "gemini" or "mistral"
	Provider string

	// Gemini configuration
	TextModel   string
	VisionModel string

	// Mistral configuration
	MistralModel   string
	MistralBaseURL string

	// Image handling
	PreprocessImages  bool
	MaxImageDimension int
	Retry             RetryConfig
}
