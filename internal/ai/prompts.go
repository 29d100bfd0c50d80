// prompts.go - Centralized prompt templates sent to the Generator
package ai

import (
	_ "embed"
	"strings"
)

// ============================================================================
// 📋 SECTION 1: ACCESS KEY CHECK
// ============================================================================

const (
	// KeyCheckInstruction and KeyCheckPrompt make the cheapest possible completion.
	// Only the success of the call matters, never its content.
	KeyCheckInstruction = "You are my helpful assistant"
	KeyCheckPrompt      = "Say 'Hello World' to me!"
)

// ============================================================================
// 🔍 SECTION 2: OCR TO MARKDOWN
// ============================================================================

// OCRInstructionVersion identifies the embedded instruction resource.
const OCRInstructionVersion = "ocr_markdown_v1"

//go:embed prompts/ocr_markdown_v1.md
var ocrInstructionResource string

// ocrInstruction is trimmed once at startup and shared read-only afterwards.
var ocrInstruction = strings.TrimSpace(ocrInstructionResource)

const ocrPrompt = "Extract text from the given image."

// BuildOCRInstruction returns the system instruction for OCR-to-Markdown extraction.
// The text is an agreement with the model about the output shape and is sent verbatim.
func BuildOCRInstruction() string {
	return ocrInstruction
}

// BuildOCRPrompt returns the user prompt that accompanies the image.
func BuildOCRPrompt() string {
	return ocrPrompt
}
