// mistral.go - Mistral AI implementation of the Generator (chat completions API)

package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bosocmputer/ocr_gateway/internal/common"
	"github.com/bosocmputer/ocr_gateway/internal/processor"
)

var _ Generator = (*MistralProvider)(nil)

// MistralProvider implements Generator for Mistral AI
type MistralProvider struct {
	baseURL           string
	modelName         string
	preprocessImages  bool
	maxImageDimension int
	retry             RetryConfig
	client            *http.Client
}

// NewMistralProvider creates a new Mistral AI provider.
// A nil client falls back to one without its own timeout; calls are bounded by ctx alone.
func NewMistralProvider(cfg GeneratorConfig, client *http.Client) *MistralProvider {
	if client == nil {
		client = &http.Client{}
	}

	baseURL := strings.TrimRight(cfg.MistralBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}

	return &MistralProvider{
		baseURL:           baseURL,
		modelName:         cfg.MistralModel,
		preprocessImages:  cfg.PreprocessImages,
		maxImageDimension: cfg.MaxImageDimension,
		retry:             cfg.Retry,
		client:            client,
	}
}

// GetProviderName returns "mistral"
func (m *MistralProvider) GetProviderName() string {
	return "mistral"
}

// Mistral chat completion request/response structures
type mistralContentPart struct {
	Type     string `json:"type"`                // "text" or "image_url"
	Text     string `json:"text,omitempty"`      // for type="text"
	ImageURL string `json:"image_url,omitempty"` // base64 data URL for type="image_url"
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []mistralContentPart
}

type mistralChatRequest struct {
	Model     string           `json:"model"`
	Messages  []mistralMessage `json:"messages"`
	MaxTokens int32            `json:"max_tokens,omitempty"`
	Stream    bool             `json:"stream"`
}

type mistralUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type mistralChoice struct {
	Index   int `json:"index"`
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Delta struct {
		Content json.RawMessage `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type mistralChatResponse struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []mistralChoice `json:"choices"`
	Usage   *mistralUsage   `json:"usage,omitempty"`
}

type mistralErrorResponse struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// MistralAPIError is returned for non-200 responses
type MistralAPIError struct {
	StatusCode int
	Message    string
}

func (e *MistralAPIError) Error() string {
	return fmt.Sprintf("mistral API error (%d): %s", e.StatusCode, e.Message)
}

// HTTPStatus exposes the status code to error categorization
func (e *MistralAPIError) HTTPStatus() int {
	return e.StatusCode
}

// CompleteText runs a text-only chat completion
func (m *MistralProvider) CompleteText(ctx context.Context, req TextRequest, reqCtx *common.RequestContext) (string, error) {
	return m.complete(ctx, req, req.Prompt, reqCtx)
}

// CompleteVision runs a chat completion with the image attached as a data URL
func (m *MistralProvider) CompleteVision(ctx context.Context, req VisionRequest, reqCtx *common.RequestContext) (string, error) {
	reqCtx.StartSubStep("decode_image")
	imageData, err := processor.DecodeImagePayload(req.ImageBase64)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return "", err
	}
	mimeType := processor.DetectMIME(imageData)
	reqCtx.EndSubStep(fmt.Sprintf("%s, %.2f KB", mimeType, float64(len(imageData))/1024))

	if m.preprocessImages {
		reqCtx.StartSubStep("preprocess_image")
		processed, processedMIME, err := processor.PreprocessImage(imageData, mimeType, m.maxImageDimension)
		if err != nil {
			reqCtx.EndSubStep("⚠️ skipped")
			reqCtx.LogWarning("Image preprocessing failed, using original: %v", err)
		} else {
			imageData, mimeType = processed, processedMIME
			reqCtx.EndSubStep(fmt.Sprintf("%.2f KB", float64(len(imageData))/1024))
		}
	}

	content := []mistralContentPart{
		{Type: "text", Text: req.Prompt},
		{Type: "image_url", ImageURL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))},
	}

	return m.complete(ctx, req.TextRequest, content, reqCtx)
}

func (m *MistralProvider) complete(ctx context.Context, req TextRequest, userContent any, reqCtx *common.RequestContext) (string, error) {
	var messages []mistralMessage
	if req.Instruction != "" {
		messages = append(messages, mistralMessage{Role: "system", Content: req.Instruction})
	}
	messages = append(messages, mistralMessage{Role: "user", Content: userContent})

	request := mistralChatRequest{
		Model:     m.modelName,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stream:    req.Stream,
	}

	reqCtx.StartSubStep("call_generator")
	response, err := callWithRetry(ctx, m.retry, reqCtx, func(ctx context.Context) (*mistralChatResponse, error) {
		return m.callChatAPI(ctx, req.APIKey, request)
	})
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return "", err
	}

	text := ""
	if len(response.Choices) > 0 {
		text = contentText(response.Choices[0].Message.Content)
		if response.Choices[0].FinishReason == "length" {
			reqCtx.LogWarning("Response was truncated (finish_reason: length, cap: %d)", req.MaxTokens)
		}
	}
	reqCtx.EndSubStep(fmt.Sprintf("%d chars", len(text)))

	if response.Usage != nil {
		reqCtx.AddUsage(common.CalculateTokenCost(response.Usage.PromptTokens, response.Usage.CompletionTokens))
	}

	return text, nil
}

// callChatAPI makes the HTTP request to the chat completions endpoint
func (m *MistralProvider) callChatAPI(ctx context.Context, apiKey string, request mistralChatRequest) (*mistralChatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if request.Stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, parseMistralError(resp.StatusCode, body)
	}

	if request.Stream {
		return readMistralStream(resp.Body)
	}

	var response mistralChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}

	return &response, nil
}

func parseMistralError(status int, body []byte) error {
	var errorResp mistralErrorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if errorResp.Error.Message != "" {
			return &MistralAPIError{StatusCode: status, Message: errorResp.Error.Message}
		}
		if errorResp.Message != "" {
			return &MistralAPIError{StatusCode: status, Message: errorResp.Message}
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(status)
	}
	return &MistralAPIError{StatusCode: status, Message: message}
}

// readMistralStream folds server-sent chunks into a single response
func readMistralStream(r io.Reader) (*mistralChatResponse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)

	var sb strings.Builder
	result := &mistralChatResponse{}
	finishReason := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk mistralChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("failed to parse stream chunk: %w", err)
		}

		if result.ID == "" {
			result.ID = chunk.ID
			result.Model = chunk.Model
		}
		if chunk.Usage != nil {
			result.Usage = chunk.Usage
		}
		if len(chunk.Choices) > 0 {
			sb.WriteString(contentText(chunk.Choices[0].Delta.Content))
			if chunk.Choices[0].FinishReason != "" {
				finishReason = chunk.Choices[0].FinishReason
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	choice := mistralChoice{FinishReason: finishReason}
	choice.Message.Content, _ = json.Marshal(sb.String())
	result.Choices = []mistralChoice{choice}

	return result, nil
}

// contentText accepts both a plain string and a list of typed chunks
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []mistralContentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var sb strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				sb.WriteString(p.Text)
			}
		}
		return sb.String()
	}

	return ""
}
