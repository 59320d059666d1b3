// gemini.go - Gemini vision provider

package ai

import (
	"context"
	"fmt"

	"github.com/bosocmputer/invoice_ocr_gemini/configs"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/common"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/ratelimit"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider using the Gemini API
type GeminiProvider struct {
	client    *genai.Client
	modelName string
	retry     RetryConfig
}

// NewGeminiProvider creates the Gemini client once at startup so a bad
// credential or unreachable endpoint fails the process immediately.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:    client,
		modelName: modelName,
		retry:     NewRetryConfig(configs.MAX_RETRY_ATTEMPTS),
	}, nil
}

// Name returns "gemini"
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// Close releases the underlying client
func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

// Generate sends the prompt and invoice image to Gemini and returns the raw response text
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, image []byte, mimeType string, reqCtx *common.RequestContext) (string, *common.TokenUsage, error) {
	reqCtx.StartSubStep("configure_model")
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"
	model.GenerationConfig.MaxOutputTokens = ptr(int32(8192))
	reqCtx.LogInfo("🔵 Gemini model: %s (MaxOutputTokens: 8192)", g.modelName)
	reqCtx.EndSubStep("")

	reqCtx.StartSubStep("call_gemini_api")
	// Free-tier RPM protection, applies before every call
	ratelimit.WaitForRateLimit()

	resp, err := callGeminiWithRetry(ctx, model,
		genai.Text(prompt),
		genai.Blob{
			MIMEType: mimeType,
			Data:     image,
		},
		reqCtx,
		g.retry,
	)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return "", nil, err
	}
	reqCtx.EndSubStep("")

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil, &ProviderError{
			Category:  "empty_response",
			Message:   "no response candidates from Gemini API",
			Retryable: false,
		}
	}

	var responseText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText = string(text)
			break
		}
	}

	if responseText == "" {
		return "", nil, &ProviderError{
			Category:  "empty_response",
			Message:   fmt.Sprintf("empty text from Gemini API (FinishReason: %v)", resp.Candidates[0].FinishReason),
			Retryable: false,
		}
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		reqCtx.LogWarning("Response was truncated (FinishReason: MAX_TOKENS)")
	}

	reqCtx.LogInfo("📦 Received response: %d chars", len(responseText))

	var tokenUsage *common.TokenUsage
	if resp.UsageMetadata != nil {
		tokens := common.CalculateTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
		tokenUsage = &tokens
	}

	return responseText, tokenUsage, nil
}

// ptr is a helper function to get a pointer to an int32 value
func ptr(i int32) *int32 {
	return &i
}
