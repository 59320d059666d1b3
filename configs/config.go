// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// Provider selection: "gemini" (default) or "mistral"
	OCR_PROVIDER string

	// Gemini AI Configuration
	GEMINI_API_KEY string
	MODEL_NAME     string

	// Mistral AI Configuration
	MISTRAL_API_KEY    string
	MISTRAL_MODEL_NAME string

	// Gemini Pricing Configuration (per 1M tokens in USD)
	GEMINI_INPUT_PRICE_PER_MILLION  float64
	GEMINI_OUTPUT_PRICE_PER_MILLION float64

	// Server Configuration
	PORT             string
	ALLOWED_ORIGINS  string
	MAX_UPLOAD_BYTES int64

	// Extraction settings
	EXTRACT_TIMEOUT    int // Per-request provider timeout in seconds
	MAX_RETRY_ATTEMPTS int // 1 = single attempt, no retry

	// Image preprocessing settings
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int

	// Result cache settings
	RESULT_CACHE_TTL int // Seconds an extraction result stays exportable
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	OCR_PROVIDER = getEnv("OCR_PROVIDER", "gemini")

	// Required credential for the selected provider
	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	MISTRAL_API_KEY = getEnv("MISTRAL_API_KEY", "")
	if OCR_PROVIDER == "gemini" && GEMINI_API_KEY == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}
	if OCR_PROVIDER == "mistral" && MISTRAL_API_KEY == "" {
		log.Fatal("MISTRAL_API_KEY environment variable is required")
	}

	// Optional with defaults
	MODEL_NAME = getEnv("MODEL_NAME", "gemini-2.5-flash")
	MISTRAL_MODEL_NAME = getEnv("MISTRAL_MODEL_NAME", "pixtral-12b-2409")

	// Gemini Pricing (default to Flash pricing)
	GEMINI_INPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_INPUT_PRICE_PER_MILLION", 0.30)
	GEMINI_OUTPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_OUTPUT_PRICE_PER_MILLION", 2.50)

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")
	MAX_UPLOAD_BYTES = getEnvInt64("MAX_UPLOAD_BYTES", 10*1024*1024)

	// Extraction
	EXTRACT_TIMEOUT = getEnvInt("EXTRACT_TIMEOUT", 45) // Seconds, keep within 30-60
	MAX_RETRY_ATTEMPTS = getEnvInt("MAX_RETRY_ATTEMPTS", 1)

	// Image Processing
	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", true)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 2000)

	// Result cache
	RESULT_CACHE_TTL = getEnvInt("RESULT_CACHE_TTL", 300)

	log.Println("✓ Configuration loaded successfully")
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
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
