// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/ocr_gateway/configs"
	"github.com/bosocmputer/ocr_gateway/internal/ai"
	"github.com/bosocmputer/ocr_gateway/internal/api"
	"github.com/bosocmputer/ocr_gateway/internal/gateway"
	"github.com/bosocmputer/ocr_gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	// Step 0.5: Set production mode
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Create the Generator service client
	generator, err := ai.CreateGenerator(ai.ConfigFromEnv())
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}
	providerName := generator.GetProviderName()
	generator = ratelimit.NewLimitedGenerator(configs.RATE_LIMIT_PER_SECOND, configs.RATE_LIMIT_BURST, generator)

	// Step 2: Build the request pipeline
	generatorTimeout := time.Duration(configs.GENERATOR_TIMEOUT) * time.Second
	dispatcher := gateway.NewDispatcher(generator, gateway.Options{
		ValidationMaxTokens: int32(configs.VALIDATION_MAX_TOKENS),
		OCRMaxTokens:        int32(configs.OCR_MAX_TOKENS),
		Timeout:             generatorTimeout,
		ImagePrefixes:       configs.RECOGNIZED_IMAGE_PREFIXES,
	})

	// Step 3: Initialize the Gin router
	handler := api.NewHandler(dispatcher, providerName, int64(configs.MAX_IMAGE_BYTES))
	router := api.NewRouter(handler, configs.ALLOWED_ORIGINS)

	// Step 4: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + configs.PORT,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // Large images upload slowly
		WriteTimeout:      writeTimeout(generatorTimeout),
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on :%s (provider: %s)", configs.PORT, providerName)
		log.Println("API Endpoints:")
		log.Println("  GET  /Main/ValidateApiKey")
		log.Println("  POST /Main/ExtractTextFromImage")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// writeTimeout leaves room for the body upload on top of the Generator call.
// Without a Generator timeout the server does not cut responses off either.
func writeTimeout(generatorTimeout time.Duration) time.Duration {
	if generatorTimeout <= 0 {
		return 0
	}
	return generatorTimeout + 30*time.Second
}
