package common

import (
	"errors"
	"testing"

	"github.com/bosocmputer/ocr_gateway/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextSteps(t *testing.T) {
	rc := NewRequestContext("ExtractTextFromImage")
	require.NotEmpty(t, rc.RequestID)

	rc.StartStep("normalize_image")
	rc.StartSubStep("decode_image")
	rc.EndSubStep("12 bytes")
	rc.EndStep("success", &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil)

	rc.StartStep("extract_markdown")
	rc.EndStep("failed", nil, errors.New("boom"))

	require.Len(t, rc.Steps, 2)
	assert.Len(t, rc.Steps[0].SubSteps, 1)
	assert.Equal(t, "boom", rc.Steps[1].Error)
	assert.Equal(t, 15, rc.TotalTokens.TotalTokens)

	summary := rc.GetSummary()
	assert.Equal(t, 2, summary["total_steps"])
	assert.Equal(t, "ExtractTextFromImage", summary["operation"])
}

func TestEndSubStepWithoutStart(t *testing.T) {
	rc := NewRequestContext("ValidateApiKey")
	rc.EndSubStep("ignored")
	assert.Empty(t, rc.CurrentSubSteps)
}

func TestCalculateTokenCost(t *testing.T) {
	configs.INPUT_PRICE_PER_MILLION = 1.0
	configs.OUTPUT_PRICE_PER_MILLION = 2.0

	usage := CalculateTokenCost(1_000_000, 500_000)
	assert.Equal(t, 1_500_000, usage.TotalTokens)
	assert.InDelta(t, 2.0, usage.CostUSD, 1e-9)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "sk-r…ed", MaskKey("sk-revoked"))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "12,345", formatNumber(12345))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
