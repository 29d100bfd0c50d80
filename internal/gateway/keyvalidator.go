package gateway

import (
	"context"
	"strings"

	"github.com/bosocmputer/ocr_gateway/internal/ai"
	"github.com/bosocmputer/ocr_gateway/internal/common"
)

// KeyValidator proves an access key by spending it on the cheapest possible completion.
// Nothing is cached: every call asks the Generator again.
type KeyValidator struct {
	generator ai.Generator
	maxTokens int32
}

// NewKeyValidator creates a validator capping the check at maxTokens output tokens
func NewKeyValidator(generator ai.Generator, maxTokens int32) *KeyValidator {
	return &KeyValidator{
		generator: generator,
		maxTokens: maxTokens,
	}
}

// Validate returns nil when the key is accepted, or a *RejectedError of kind
// MissingKey or InvalidKey.
func (v *KeyValidator) Validate(ctx context.Context, apiKey string, reqCtx *common.RequestContext) error {
	if isBlank(apiKey) {
		return reject(MissingKey, nil)
	}

	_, err := v.generator.CompleteText(ctx, ai.TextRequest{
		APIKey:      apiKey,
		Instruction: ai.KeyCheckInstruction,
		Prompt:      ai.KeyCheckPrompt,
		Stream:      false,
		MaxTokens:   v.maxTokens,
	}, reqCtx)
	if err != nil {
		// Only the request log sees the cause
		reqCtx.LogWarning("Access key %s rejected: %v", common.MaskKey(apiKey), err)
		return reject(InvalidKey, err)
	}

	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
