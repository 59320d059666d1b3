// interface.go - Provider interface for supporting multiple vision model backends

package ai

import (
	"context"

	"github.com/bosocmputer/invoice_ocr_gemini/internal/common"
)

// Provider defines the interface every vision model backend must implement.
// This allows swapping Gemini, Mistral, or a test double behind the extractor.
type Provider interface {
	// Generate sends the prompt and image to the model and returns the raw
	// response text. Token usage is nil when the backend reports none.
	Generate(ctx context.Context, prompt string, image []byte, mimeType string, reqCtx *common.RequestContext) (string, *common.TokenUsage, error)

	// Name returns the provider name (e.g., "gemini", "mistral")
	Name() string
}
