// router.go - Gin router setup: middleware and routes.

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bosocmputer/ocr_gateway/internal/common"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the handler's routes behind access logging, recovery and CORS
func NewRouter(h *Handler, allowedOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithFormatter(accessLogFormatter), gin.Recovery())
	router.Use(corsMiddleware(allowedOrigins))

	// Root endpoint for SSL verification
	router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})
	router.GET("/health", h.HealthHandler)

	routes := []route{
		{http.MethodGet, "/Main/ValidateApiKey", h.ValidateAPIKeyHandler},
		{http.MethodPost, "/Main/ExtractTextFromImage", h.ExtractTextFromImageHandler},
	}
	for _, r := range routes {
		router.Handle(r.method, r.path, r.handler)
	}

	// Gateway paths match in any letter case; the exact casing never reaches NoRoute
	router.NoRoute(func(c *gin.Context) {
		for _, r := range routes {
			if c.Request.Method == r.method && strings.EqualFold(c.Request.URL.Path, r.path) {
				r.handler(c)
				return
			}
		}
	})

	return router
}

type route struct {
	method  string
	path    string
	handler gin.HandlerFunc
}

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// accessLogFormatter is gin's default line with the access key masked
func accessLogFormatter(param gin.LogFormatterParams) string {
	if param.Latency > time.Minute {
		param.Latency = param.Latency.Truncate(time.Second)
	}
	return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
		param.TimeStamp.Format("2006/01/02 - 15:04:05"),
		param.StatusCode,
		param.Latency,
		param.ClientIP,
		param.Method,
		redactPath(param.Path),
		param.ErrorMessage,
	)
}

// redactPath masks every apiKey query value of a logged request path, whatever the name's casing
func redactPath(path string) string {
	base, rawQuery, found := strings.Cut(path, "?")
	if !found {
		return path
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return base + "?[unparsable query]"
	}

	masked := false
	for name, keys := range query {
		if !strings.EqualFold(name, apiKeyQueryParam) {
			continue
		}
		for i, key := range keys {
			keys[i] = common.MaskKey(key)
		}
		masked = true
	}
	if !masked {
		return path
	}
	return base + "?" + query.Encode()
}
