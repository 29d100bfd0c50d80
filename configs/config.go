// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// Generator Configuration
	GENERATOR_PROVIDER     string
	MODEL_NAME             string
	VISION_MODEL_NAME      string
	MISTRAL_MODEL_NAME     string
	MISTRAL_BASE_URL       string
	VALIDATION_MAX_TOKENS  int
	OCR_MAX_TOKENS         int
	GENERATOR_TIMEOUT      int // seconds
	GENERATOR_MAX_ATTEMPTS int

	// Pricing Configuration (per 1M tokens in USD), used for the request summary only
	INPUT_PRICE_PER_MILLION  float64
	OUTPUT_PRICE_PER_MILLION float64

	// Server Configuration
	PORT            string
	ALLOWED_ORIGINS string
	MAX_IMAGE_BYTES int

	// Image payload settings
	RECOGNIZED_IMAGE_PREFIXES  []string
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int

	// Rate limiting (0 disables)
	RATE_LIMIT_PER_SECOND float64
	RATE_LIMIT_BURST      int
)

// DefaultImageSubtypes are the data-URI image subtypes stripped from payloads.
var DefaultImageSubtypes = []string{"png", "jpeg", "heic", "heif", "webp"}

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	GENERATOR_PROVIDER = strings.ToLower(getEnv("GENERATOR_PROVIDER", "gemini"))
	MODEL_NAME = getEnv("MODEL_NAME", "gemini-2.5-flash")
	VISION_MODEL_NAME = getEnv("VISION_MODEL_NAME", MODEL_NAME)
	MISTRAL_MODEL_NAME = getEnv("MISTRAL_MODEL_NAME", "mistral-small-latest")
	MISTRAL_BASE_URL = strings.TrimRight(getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"), "/")

	// The key check only needs a handful of tokens. Extraction needs room for whole documents.
	VALIDATION_MAX_TOKENS = getEnvInt("VALIDATION_MAX_TOKENS", 10)
	OCR_MAX_TOKENS = getEnvInt("OCR_MAX_TOKENS", 8192)
	GENERATOR_TIMEOUT = getEnvInt("GENERATOR_TIMEOUT", 60)
	GENERATOR_MAX_ATTEMPTS = getEnvInt("GENERATOR_MAX_ATTEMPTS", 1)

	INPUT_PRICE_PER_MILLION = getEnvFloat("INPUT_PRICE_PER_MILLION", 0.30)
	OUTPUT_PRICE_PER_MILLION = getEnvFloat("OUTPUT_PRICE_PER_MILLION", 2.50)

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")
	MAX_IMAGE_BYTES = getEnvInt("MAX_IMAGE_BYTES", 20<<20)

	RECOGNIZED_IMAGE_PREFIXES = ImagePrefixes(getEnvList("RECOGNIZED_IMAGE_PREFIXES", DefaultImageSubtypes))
	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", false)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 2500)

	RATE_LIMIT_PER_SECOND = getEnvFloat("RATE_LIMIT_PER_SECOND", 0)
	RATE_LIMIT_BURST = getEnvInt("RATE_LIMIT_BURST", 1)

	if GENERATOR_MAX_ATTEMPTS < 1 {
		GENERATOR_MAX_ATTEMPTS = 1
	}

	VALIDATION_MAX_TOKENS = clampTokens("VALIDATION_MAX_TOKENS", VALIDATION_MAX_TOKENS)
	OCR_MAX_TOKENS = clampTokens("OCR_MAX_TOKENS", OCR_MAX_TOKENS)
	if OCR_MAX_TOKENS <= 10 {
		log.Printf("⚠️  OCR_MAX_TOKENS is %d: extracted Markdown will be cut off after a few words", OCR_MAX_TOKENS)
	}

	log.Printf("✓ Configuration loaded successfully (provider: %s, ocr max tokens: %d)", GENERATOR_PROVIDER, OCR_MAX_TOKENS)
}

// ImagePrefixes turns image subtypes ("png") into data-URI prefixes ("data:image/png;base64,").
// Entries that already look like a full prefix are kept as they are.
func ImagePrefixes(subtypes []string) []string {
	prefixes := make([]string, 0, len(subtypes))
	for _, s := range subtypes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "data:") {
			prefixes = append(prefixes, s)
			continue
		}
		prefixes = append(prefixes, "data:image/"+strings.ToLower(s)+";base64,")
	}
	return prefixes
}

// clampTokens keeps a token cap within what providers accept (1..MaxInt32)
func clampTokens(name string, value int) int {
	if value < 1 {
		log.Printf("⚠️  %s=%d is not a valid token cap, using 1", name, value)
		return 1
	}
	if value > math.MaxInt32 {
		log.Printf("⚠️  %s=%d is too large, using %d", name, value, math.MaxInt32)
		return math.MaxInt32
	}
	return value
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
