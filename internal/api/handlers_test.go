package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bosocmputer/ocr_gateway/configs"
	"github.com/bosocmputer/ocr_gateway/internal/ai"
	"github.com/bosocmputer/ocr_gateway/internal/common"
	"github.com/bosocmputer/ocr_gateway/internal/gateway"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu sync.Mutex

	textErr      error
	visionResult string
	visionErr    error

	textCalls   int
	visionCalls []ai.VisionRequest
}

func (f *fakeGenerator) CompleteText(_ context.Context, _ ai.TextRequest, _ *common.RequestContext) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	if f.textErr != nil {
		return "", f.textErr
	}
	return "Hello World", nil
}

func (f *fakeGenerator) CompleteVision(_ context.Context, req ai.VisionRequest, _ *common.RequestContext) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visionCalls = append(f.visionCalls, req)
	return f.visionResult, f.visionErr
}

func (f *fakeGenerator) GetProviderName() string { return "fake" }

func setupRouter(gen *fakeGenerator, maxBodyBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)

	dispatcher := gateway.NewDispatcher(gen, gateway.Options{
		ValidationMaxTokens: 10,
		OCRMaxTokens:        8192,
		Timeout:             time.Minute,
		ImagePrefixes:       configs.ImagePrefixes(configs.DefaultImageSubtypes),
	})
	return NewRouter(NewHandler(dispatcher, gen.GetProviderName(), maxBodyBytes), "*")
}

func perform(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func assertText(t *testing.T, w *httptest.ResponseRecorder, status int, body string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	assert.Equal(t, body, w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestValidateApiKeyRoute(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		gen := &fakeGenerator{}
		w := perform(setupRouter(gen, 0), httptest.NewRequest(http.MethodGet, "/Main/ValidateApiKey?apiKey=sk-valid", nil))

		assertText(t, w, http.StatusOK, "Valid Access Key")
		assert.Equal(t, 1, gen.textCalls)
	})

	t.Run("missing key", func(t *testing.T) {
		gen := &fakeGenerator{}
		w := perform(setupRouter(gen, 0), httptest.NewRequest(http.MethodGet, "/Main/ValidateApiKey", nil))

		assertText(t, w, http.StatusBadRequest, "Empty Access Key")
		assert.Zero(t, gen.textCalls)
	})

	t.Run("whitespace key", func(t *testing.T) {
		gen := &fakeGenerator{}
		w := perform(setupRouter(gen, 0), httptest.NewRequest(http.MethodGet, "/Main/ValidateApiKey?apiKey=%20%20", nil))

		assertText(t, w, http.StatusBadRequest, "Empty Access Key")
		assert.Zero(t, gen.textCalls)
	})

	t.Run("revoked key", func(t *testing.T) {
		gen := &fakeGenerator{textErr: errors.New("AuthError: key sk-revoked has been revoked")}
		w := perform(setupRouter(gen, 0), httptest.NewRequest(http.MethodGet, "/Main/ValidateApiKey?apiKey=sk-revoked", nil))

		assertText(t, w, http.StatusUnauthorized, "Invalid Access Key")
	})
}

func TestExtractTextFromImageRoute(t *testing.T) {
	t.Run("raw data uri body", func(t *testing.T) {
		gen := &fakeGenerator{visionResult: "# Title\n\ntext"}
		req := httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage?apiKey=sk-valid", strings.NewReader("data:image/jpeg;base64,XYZ"))
		w := perform(setupRouter(gen, 0), req)

		assertText(t, w, http.StatusOK, "# Title\n\ntext")
		require.Len(t, gen.visionCalls, 1)
		assert.Equal(t, "XYZ", gen.visionCalls[0].ImageBase64)
		assert.Equal(t, "sk-valid", gen.visionCalls[0].APIKey)
	})

	t.Run("json string body", func(t *testing.T) {
		gen := &fakeGenerator{visionResult: "ok"}
		req := httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage?apiKey=sk-valid", strings.NewReader(`"data:image/png;base64,ABC"`))
		req.Header.Set("Content-Type", "application/json")
		w := perform(setupRouter(gen, 0), req)

		assertText(t, w, http.StatusOK, "ok")
		require.Len(t, gen.visionCalls, 1)
		assert.Equal(t, "ABC", gen.visionCalls[0].ImageBase64)
	})

	t.Run("malformed json body", func(t *testing.T) {
		gen := &fakeGenerator{}
		req := httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage?apiKey=sk-valid", strings.NewReader(`{"image":`))
		req.Header.Set("Content-Type", "application/json")
		w := perform(setupRouter(gen, 0), req)

		assertText(t, w, http.StatusBadRequest, "Image Not Found")
		assert.Empty(t, gen.visionCalls)
	})

	t.Run("empty body", func(t *testing.T) {
		gen := &fakeGenerator{}
		req := httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage?apiKey=sk-valid", strings.NewReader(""))
		w := perform(setupRouter(gen, 0), req)

		assertText(t, w, http.StatusBadRequest, "Image Not Found")
		assert.Empty(t, gen.visionCalls)
	})

	t.Run("missing key", func(t *testing.T) {
		gen := &fakeGenerator{}
		req := httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage", strings.NewReader("data:image/png;base64,ABC"))
		w := perform(setupRouter(gen, 0), req)

		assertText(t, w, http.StatusBadRequest, "Empty Access Key")
		assert.Empty(t, gen.visionCalls)
		assert.Zero(t, gen.textCalls)
	})

	t.Run("backend failure message", func(t *testing.T) {
		gen := &fakeGenerator{visionErr: errors.New("mistral API error (400): Image format not supported")}
		req := httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage?apiKey=sk-valid", strings.NewReader("AAAA"))
		w := perform(setupRouter(gen, 0), req)

		assertText(t, w, http.StatusBadRequest, "mistral API error (400): Image format not supported")
	})

	t.Run("body too large", func(t *testing.T) {
		gen := &fakeGenerator{visionResult: "ok"}
		req := httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage?apiKey=sk-valid", strings.NewReader(strings.Repeat("A", 64)))
		w := perform(setupRouter(gen, 16), req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Empty(t, gen.visionCalls)
	})
}

func TestOperationalRoutes(t *testing.T) {
	router := setupRouter(&fakeGenerator{}, 0)

	w := perform(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = perform(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "fake", health["provider"])

	w = perform(router, httptest.NewRequest(http.MethodOptions, "/Main/ExtractTextFromImage", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRedactPath(t *testing.T) {
	redacted := redactPath("/Main/ValidateApiKey?apiKey=sk-1234567890abcdef")
	assert.True(t, strings.HasPrefix(redacted, "/Main/ValidateApiKey?apiKey="))
	assert.NotContains(t, redacted, "1234567890abcdef")

	assert.Equal(t, "/health", redactPath("/health"))
	assert.Equal(t, "/x?debug=true", redactPath("/x?debug=true"))
}

func TestRedactPathAnyCasing(t *testing.T) {
	for _, name := range []string{"ApiKey", "apikey", "APIKEY", "aPiKeY"} {
		redacted := redactPath("/Main/ValidateApiKey?debug=1&" + name + "=sk-1234567890abcdef")

		assert.NotContains(t, redacted, "1234567890abcdef", name)
		assert.Contains(t, redacted, name+"=", name)
		assert.Contains(t, redacted, "debug=1", name)
	}

	redacted := redactPath("/x?apiKey=sk-first-secret-key&APIKEY=sk-second-secret-key")
	assert.NotContains(t, redacted, "first-secret")
	assert.NotContains(t, redacted, "second-secret")
}

func TestAccessLogMasksKey(t *testing.T) {
	line := accessLogFormatter(gin.LogFormatterParams{
		TimeStamp:  time.Now(),
		StatusCode: http.StatusOK,
		Method:     http.MethodGet,
		Path:       "/Main/ValidateApiKey?ApiKey=sk-valid-but-secret",
	})
	assert.NotContains(t, line, "sk-valid-but-secret")
	assert.Contains(t, line, "/Main/ValidateApiKey?ApiKey=")
}

func TestQueryAPIKey(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"apiKey=sk-exact", "sk-exact"},
		{"ApiKey=sk-pascal", "sk-pascal"},
		{"apikey=sk-lower", "sk-lower"},
		{"APIKEY=sk-upper&apiKey=sk-exact", "sk-exact"},
		{"apikey=sk-lower&ApiKey=sk-pascal", "sk-pascal"},
		{"apiKey=", ""},
		{"key=sk-other", ""},
		{"", ""},
	}

	for _, tt := range tests {
		query, err := url.ParseQuery(tt.query)
		require.NoError(t, err)
		assert.Equal(t, tt.want, queryAPIKey(query), tt.query)
	}
}

func TestRoutesIgnoreCase(t *testing.T) {
	t.Run("key parameter casing", func(t *testing.T) {
		gen := &fakeGenerator{visionResult: "ok"}
		router := setupRouter(gen, 0)

		w := perform(router, httptest.NewRequest(http.MethodGet, "/Main/ValidateApiKey?ApiKey=sk-valid", nil))
		assertText(t, w, http.StatusOK, "Valid Access Key")

		w = perform(router, httptest.NewRequest(http.MethodPost, "/Main/ExtractTextFromImage?apikey=sk-valid", strings.NewReader("data:image/png;base64,ABC")))
		assertText(t, w, http.StatusOK, "ok")
		require.Len(t, gen.visionCalls, 1)
		assert.Equal(t, "sk-valid", gen.visionCalls[0].APIKey)
	})

	t.Run("path casing", func(t *testing.T) {
		gen := &fakeGenerator{visionResult: "ok"}
		router := setupRouter(gen, 0)

		w := perform(router, httptest.NewRequest(http.MethodGet, "/main/validateapikey?apiKey=sk-valid", nil))
		assertText(t, w, http.StatusOK, "Valid Access Key")

		w = perform(router, httptest.NewRequest(http.MethodPost, "/MAIN/EXTRACTTEXTFROMIMAGE?apiKey=sk-valid", strings.NewReader("ABC")))
		assertText(t, w, http.StatusOK, "ok")
		assert.Equal(t, 1, gen.textCalls)
		assert.Len(t, gen.visionCalls, 1)
	})

	t.Run("unknown path and wrong method", func(t *testing.T) {
		gen := &fakeGenerator{}
		router := setupRouter(gen, 0)

		w := perform(router, httptest.NewRequest(http.MethodGet, "/main/unknown", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = perform(router, httptest.NewRequest(http.MethodPost, "/main/validateapikey?apiKey=sk-valid", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Zero(t, gen.textCalls)
	})
}
