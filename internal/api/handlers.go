// handlers.go - HTTP handlers for the key check and image extraction routes.

package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/bosocmputer/ocr_gateway/internal/common"
	"github.com/bosocmputer/ocr_gateway/internal/gateway"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	textContentType  = "text/plain; charset=utf-8"
	requestIDHeader  = "X-Request-ID"
	apiKeyQueryParam = "apiKey"

	msgBodyTooLarge = "Image Too Large"
)

// Handler serves the gateway routes over a shared Dispatcher
type Handler struct {
	dispatcher   *gateway.Dispatcher
	providerName string
	maxBodyBytes int64
}

// NewHandler creates a handler. maxBodyBytes <= 0 leaves the body size unbounded.
func NewHandler(dispatcher *gateway.Dispatcher, providerName string, maxBodyBytes int64) *Handler {
	return &Handler{
		dispatcher:   dispatcher,
		providerName: providerName,
		maxBodyBytes: maxBodyBytes,
	}
}

// ValidateAPIKeyHandler handles GET /Main/ValidateApiKey?apiKey=...
func (h *Handler) ValidateAPIKeyHandler(c *gin.Context) {
	reqCtx := common.NewRequestContext("ValidateApiKey")
	c.Header(requestIDHeader, reqCtx.RequestID)

	resp := h.dispatcher.ValidateAPIKey(c.Request.Context(), queryAPIKey(c.Request.URL.Query()), reqCtx)

	reqCtx.GetSummary()
	writeText(c, resp)
}

// ExtractTextFromImageHandler handles POST /Main/ExtractTextFromImage?apiKey=...
// The body is the image: raw base64, a data URI, or either one as a JSON string.
func (h *Handler) ExtractTextFromImageHandler(c *gin.Context) {
	reqCtx := common.NewRequestContext("ExtractTextFromImage")
	c.Header(requestIDHeader, reqCtx.RequestID)
	defer reqCtx.GetSummary()

	apiKey := queryAPIKey(c.Request.URL.Query())

	// A missing key is answered before the body is read
	if strings.TrimSpace(apiKey) == "" {
		writeText(c, h.dispatcher.ExtractTextFromImage(c.Request.Context(), "", apiKey, reqCtx))
		return
	}

	reqCtx.StartStep("read_body")
	image, err := h.readImage(c)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			reqCtx.EndStep("rejected", nil, err)
			writeText(c, gateway.Response{Status: http.StatusRequestEntityTooLarge, Body: msgBodyTooLarge})
			return
		}
		// Unreadable body is treated as no image
		reqCtx.LogWarning("Could not read image body: %v", err)
		image = ""
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.LogInfo("📷 Image payload: %d bytes", len(image))

	writeText(c, h.dispatcher.ExtractTextFromImage(c.Request.Context(), image, apiKey, reqCtx))
}

// HealthHandler handles GET /health
func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "ocr-gateway",
		"version":  "1.0.0",
		"provider": h.providerName,
	})
}

func (h *Handler) readImage(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		return "", nil
	}
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}

	if c.ContentType() == binding.MIMEJSON && len(body) > 0 {
		var image string
		if err := binding.JSON.BindBody(body, &image); err != nil {
			return "", err
		}
		return image, nil
	}

	return string(body), nil
}

// queryAPIKey returns the access key, matching the parameter name case-insensitively.
// An exact "apiKey" wins; otherwise the first matching name in sorted order.
func queryAPIKey(query url.Values) string {
	if keys := query[apiKeyQueryParam]; len(keys) > 0 {
		return keys[0]
	}

	var names []string
	for name := range query {
		if strings.EqualFold(name, apiKeyQueryParam) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	for _, name := range names {
		if keys := query[name]; len(keys) > 0 {
			return keys[0]
		}
	}
	return ""
}

func writeText(c *gin.Context, resp gateway.Response) {
	c.Data(resp.Status, textContentType, []byte(resp.Body))
}
