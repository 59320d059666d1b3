// factory.go - Provider factory for creating vision model backends

package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/bosocmputer/invoice_ocr_gemini/configs"
)

// CreateProvider creates a vision model provider based on configuration
func CreateProvider(ctx context.Context) (Provider, error) {
	switch configs.OCR_PROVIDER {
	case "gemini":
		log.Printf("🔵 Creating Gemini provider (model: %s)", configs.MODEL_NAME)
		return NewGeminiProvider(ctx, configs.GEMINI_API_KEY, configs.MODEL_NAME)

	case "mistral":
		log.Printf("🔷 Creating Mistral provider (model: %s)", configs.MISTRAL_MODEL_NAME)
		return NewMistralProvider(configs.MISTRAL_API_KEY, configs.MISTRAL_MODEL_NAME), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: gemini, mistral)", configs.OCR_PROVIDER)
	}
}
