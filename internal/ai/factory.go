// factory.go - Generator factory for creating provider instances

package ai

import (
	"fmt"
	"log"

	"github.com/bosocmputer/ocr_gateway/configs"
)

// ConfigFromEnv builds the Generator configuration from loaded settings
func ConfigFromEnv() GeneratorConfig {
	retry := DefaultRetryConfig
	retry.MaxAttempts = configs.GENERATOR_MAX_ATTEMPTS

	return GeneratorConfig{
		Provider:          configs.GENERATOR_PROVIDER,
		TextModel:         configs.MODEL_NAME,
		VisionModel:       configs.VISION_MODEL_NAME,
		MistralModel:      configs.MISTRAL_MODEL_NAME,
		MistralBaseURL:    configs.MISTRAL_BASE_URL,
		PreprocessImages:  configs.ENABLE_IMAGE_PREPROCESSING,
		MaxImageDimension: configs.MAX_IMAGE_DIMENSION,
		Retry:             retry,
	}
}

// CreateGenerator creates a Generator based on configuration
func CreateGenerator(cfg GeneratorConfig) (Generator, error) {
	switch cfg.Provider {
	case "gemini", "":
		log.Printf("🔵 Creating Gemini generator (text: %s, vision: %s)", cfg.TextModel, cfg.VisionModel)
		return NewGeminiProvider(cfg), nil

	case "mistral":
		log.Printf("🔷 Creating Mistral generator (model: %s)", cfg.MistralModel)
		return NewMistralProvider(cfg, nil), nil

	default:
		return nil, fmt.Errorf("unsupported generator provider: %s (supported: gemini, mistral)", cfg.Provider)
	}
}
