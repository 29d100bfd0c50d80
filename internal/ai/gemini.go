// gemini.go - Gemini implementation of the Generator (text and vision completion)

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/bosocmputer/ocr_gateway/internal/common"
	"github.com/bosocmputer/ocr_gateway/internal/processor"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var _ Generator = (*GeminiProvider)(nil)

// GeminiProvider implements Generator on top of the Gemini API.
// A client is created per call because every call carries its own access key.
type GeminiProvider struct {
	textModel         string
	visionModel       string
	preprocessImages  bool
	maxImageDimension int
	retry             RetryConfig

	// extra client options, e.g. option.WithEndpoint in non-production setups
	clientOptions []option.ClientOption
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(cfg GeneratorConfig, opts ...option.ClientOption) *GeminiProvider {
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.TextModel
	}

	return &GeminiProvider{
		textModel:         cfg.TextModel,
		visionModel:       visionModel,
		preprocessImages:  cfg.PreprocessImages,
		maxImageDimension: cfg.MaxImageDimension,
		retry:             cfg.Retry,
		clientOptions:     opts,
	}
}

// GetProviderName returns "gemini"
func (g *GeminiProvider) GetProviderName() string {
	return "gemini"
}

// CompleteText runs a text-only completion
func (g *GeminiProvider) CompleteText(ctx context.Context, req TextRequest, reqCtx *common.RequestContext) (string, error) {
	return g.generate(ctx, g.textModel, req, []genai.Part{genai.Text(req.Prompt)}, reqCtx)
}

// CompleteVision runs a completion over the prompt and the decoded image
func (g *GeminiProvider) CompleteVision(ctx context.Context, req VisionRequest, reqCtx *common.RequestContext) (string, error) {
	parts, err := g.visionParts(req, reqCtx)
	if err != nil {
		return "", err
	}
	return g.generate(ctx, g.visionModel, req.TextRequest, parts, reqCtx)
}

// visionParts decodes the image payload into an inline blob placed after the prompt
func (g *GeminiProvider) visionParts(req VisionRequest, reqCtx *common.RequestContext) ([]genai.Part, error) {
	reqCtx.StartSubStep("decode_image")
	imageData, err := processor.DecodeImagePayload(req.ImageBase64)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, err
	}
	mimeType := processor.DetectMIME(imageData)
	reqCtx.EndSubStep(fmt.Sprintf("%s, %.2f KB", mimeType, float64(len(imageData))/1024))

	if g.preprocessImages {
		reqCtx.StartSubStep("preprocess_image")
		processed, processedMIME, err := processor.PreprocessImage(imageData, mimeType, g.maxImageDimension)
		if err != nil {
			// Preprocessing is best effort, the original bytes are still usable
			reqCtx.EndSubStep("⚠️ skipped")
			reqCtx.LogWarning("Image preprocessing failed, using original: %v", err)
		} else {
			imageData, mimeType = processed, processedMIME
			reqCtx.EndSubStep(fmt.Sprintf("%.2f KB", float64(len(imageData))/1024))
		}
	}

	return []genai.Part{
		genai.Text(req.Prompt),
		genai.Blob{
			MIMEType: mimeType,
			Data:     imageData,
		},
	}, nil
}

type geminiResult struct {
	text         string
	usage        *genai.UsageMetadata
	finishReason genai.FinishReason
}

func (g *GeminiProvider) generate(ctx context.Context, modelName string, req TextRequest, parts []genai.Part, reqCtx *common.RequestContext) (string, error) {
	reqCtx.StartSubStep("init_client")
	opts := append([]option.ClientOption{option.WithAPIKey(req.APIKey)}, g.clientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(modelName)
	if req.Instruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.Instruction)},
		}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	reqCtx.EndSubStep(fmt.Sprintf("model: %s, max tokens: %d, stream: %v", modelName, req.MaxTokens, req.Stream))

	reqCtx.StartSubStep("call_generator")
	result, err := callWithRetry(ctx, g.retry, reqCtx, func(ctx context.Context) (*geminiResult, error) {
		if req.Stream {
			return streamGemini(ctx, model, parts)
		}

		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return nil, err
		}
		return collectGemini(resp), nil
	})
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return "", err
	}
	reqCtx.EndSubStep(fmt.Sprintf("%d chars", len(result.text)))

	if result.finishReason == genai.FinishReasonMaxTokens {
		reqCtx.LogWarning("Response was truncated (FinishReason: MAX_TOKENS, cap: %d)", req.MaxTokens)
	}

	if result.usage != nil {
		reqCtx.AddUsage(common.CalculateTokenCost(
			int(result.usage.PromptTokenCount),
			int(result.usage.CandidatesTokenCount),
		))
	}

	return result.text, nil
}

// streamGemini reads the whole stream and joins the text chunks
func streamGemini(ctx context.Context, model *genai.GenerativeModel, parts []genai.Part) (*geminiResult, error) {
	iter := model.GenerateContentStream(ctx, parts...)

	var sb strings.Builder
	result := &geminiResult{}

	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		chunk := collectGemini(resp)
		sb.WriteString(chunk.text)

		if chunk.usage != nil {
			result.usage = chunk.usage
		}
		if chunk.finishReason != genai.FinishReasonUnspecified {
			result.finishReason = chunk.finishReason
		}
	}

	result.text = sb.String()
	return result, nil
}

// collectGemini joins the text parts of the first candidate.
// A response without candidates or text is still a successful completion.
func collectGemini(resp *genai.GenerateContentResponse) *geminiResult {
	result := &geminiResult{}
	if resp == nil {
		return result
	}

	result.usage = resp.UsageMetadata

	if len(resp.Candidates) == 0 {
		return result
	}

	candidate := resp.Candidates[0]
	result.finishReason = candidate.FinishReason

	if candidate.Content == nil {
		return result
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	result.text = sb.String()

	return result
}
