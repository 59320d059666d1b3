// mistral.go - Mistral vision provider (chat completions with image input)

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bosocmputer/invoice_ocr_gemini/internal/common"
)

const mistralChatEndpoint = "https://api.mistral.ai/v1/chat/completions"

// MistralProvider implements Provider using Mistral's vision-capable chat API
type MistralProvider struct {
	apiKey    string
	modelName string
	client    *http.Client
}

// NewMistralProvider creates a new Mistral provider
func NewMistralProvider(apiKey, modelName string) *MistralProvider {
	return &MistralProvider{
		apiKey:    apiKey,
		modelName: modelName,
		// No client timeout; the per-request context carries the deadline
		client: &http.Client{},
	}
}

// Name returns "mistral"
func (m *MistralProvider) Name() string {
	return "mistral"
}

// Mistral chat API request/response structures
type mistralContentPart struct {
	Type     string `json:"type"`                // "text" or "image_url"
	Text     string `json:"text,omitempty"`      // for type="text"
	ImageURL string `json:"image_url,omitempty"` // base64 data URL for type="image_url"
}

type mistralMessage struct {
	Role    string               `json:"role"`
	Content []mistralContentPart `json:"content"`
}

type mistralChatRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	Temperature float64          `json:"temperature"`
}

type mistralChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type mistralErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate sends the prompt and invoice image to Mistral and returns the raw response text
func (m *MistralProvider) Generate(ctx context.Context, prompt string, image []byte, mimeType string, reqCtx *common.RequestContext) (string, *common.TokenUsage, error) {
	reqCtx.LogInfo("🔷 Mistral model: %s", m.modelName)

	base64Image := base64.StdEncoding.EncodeToString(image)
	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64Image)

	request := mistralChatRequest{
		Model: m.modelName,
		Messages: []mistralMessage{
			{
				Role: "user",
				Content: []mistralContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: imageURL},
				},
			},
		},
		Temperature: 0.2,
	}

	reqCtx.StartSubStep("call_mistral_api")
	response, err := m.callChatAPI(ctx, request)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return "", nil, err
	}
	reqCtx.EndSubStep("")

	if len(response.Choices) == 0 {
		return "", nil, &ProviderError{
			Category:  "empty_response",
			Message:   "no choices returned from Mistral API",
			Retryable: false,
		}
	}

	responseText := response.Choices[0].Message.Content
	if responseText == "" {
		return "", nil, &ProviderError{
			Category:  "empty_response",
			Message:   fmt.Sprintf("empty content from Mistral API (finish_reason: %s)", response.Choices[0].FinishReason),
			Retryable: false,
		}
	}

	reqCtx.LogInfo("📦 Received response: %d chars", len(responseText))

	// Mistral bills per token like Gemini; reuse the configured pricing so the
	// per-request cost line stays populated when this backend is selected
	tokens := common.CalculateTokenCost(response.Usage.PromptTokens, response.Usage.CompletionTokens)

	return responseText, &tokens, nil
}

// callChatAPI makes the HTTP request to the Mistral chat completions endpoint
func (m *MistralProvider) callChatAPI(ctx context.Context, request mistralChatRequest) (*mistralChatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", mistralChatEndpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.apiKey))

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, categorizeProviderError(ctx.Err())
		}
		return nil, categorizeProviderError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := string(body)
		var errorResp mistralErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			message = errorResp.Error.Message
		}
		return nil, &ProviderError{
			Category:   "api_error",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("mistral API error (%d): %s", resp.StatusCode, message),
			Retryable:  resp.StatusCode == 429 || resp.StatusCode >= 500,
		}
	}

	var response mistralChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}

	return &response, nil
}
