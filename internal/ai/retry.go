// retry.go - Retry logic and error categorization for provider API calls

package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// RetryConfig defines retry behavior for provider API calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// NewRetryConfig builds a retry config for the given attempt budget.
// maxAttempts=1 means a single call with no retry.
func NewRetryConfig(maxAttempts int) RetryConfig {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryConfig{
		MaxAttempts:     maxAttempts,
		InitialDelay:    1 * time.Second,
		MaxDelay:        8 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ProviderError represents a categorized upstream model error
type ProviderError struct {
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
	Retryable     bool
	Timeout       bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d, retryable: %v)", e.Category, e.Message, e.StatusCode, e.Retryable)
}

func (e *ProviderError) Unwrap() error {
	return e.OriginalError
}

// categorizeProviderError analyzes an error and determines the retry strategy
func categorizeProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}

	provErr := &ProviderError{
		OriginalError: err,
		Category:      "unknown",
		Message:       err.Error(),
		Retryable:     false,
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		provErr.StatusCode = apiErr.Code

		switch apiErr.Code {
		case 400:
			provErr.Category = "bad_request"
			provErr.Message = "Invalid request format or parameters"

		case 401:
			provErr.Category = "unauthorized"
			provErr.Message = "Invalid API key or authentication failed"

		case 403:
			provErr.Category = "forbidden"
			provErr.Message = "API key lacks required permissions"

		case 404:
			provErr.Category = "not_found"
			provErr.Message = "Model not found or invalid endpoint"

		case 413:
			provErr.Category = "payload_too_large"
			provErr.Message = "Request size exceeds limit (reduce image size)"

		case 429:
			provErr.Category = "rate_limit"
			provErr.Message = "Rate limit exceeded - too many requests"
			provErr.Retryable = true

		case 500, 502, 503, 504:
			provErr.Category = "server_error"
			provErr.Message = fmt.Sprintf("Upstream server error (%d)", apiErr.Code)
			provErr.Retryable = true

		default:
			provErr.Category = "unknown_api_error"
			provErr.Message = fmt.Sprintf("API error: %s", apiErr.Message)
			provErr.Retryable = apiErr.Code >= 500
		}

		return provErr
	}

	if err == context.DeadlineExceeded {
		provErr.Category = "timeout"
		provErr.Message = "Request timeout - processing took too long"
		provErr.Timeout = true
		return provErr
	}

	if err == context.Canceled {
		provErr.Category = "canceled"
		provErr.Message = "Request was canceled"
		return provErr
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "limit") {
		provErr.Category = "quota_exceeded"
		provErr.Message = "API quota exceeded - daily or monthly limit reached"
		return provErr
	}

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline") {
		provErr.Category = "timeout"
		provErr.Message = "Request timeout"
		provErr.Timeout = true
		provErr.Retryable = true
		return provErr
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") {
		provErr.Category = "network_error"
		provErr.Message = "Network connection error"
		provErr.Retryable = true
		return provErr
	}

	return provErr
}

// callGeminiWithRetry executes a Gemini API call with bounded retry
func callGeminiWithRetry(
	ctx context.Context,
	model *genai.GenerativeModel,
	prompt genai.Part,
	image genai.Part,
	reqCtx logContext,
	config RetryConfig,
) (*genai.GenerateContentResponse, error) {

	var lastProvErr *ProviderError

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 {
			reqCtx.LogInfo("Retry attempt %d/%d", attempt, config.MaxAttempts)
		}

		resp, err := model.GenerateContent(ctx, prompt, image)
		if err == nil {
			if attempt > 1 {
				reqCtx.LogInfo("✅ Retry succeeded on attempt %d", attempt)
			}
			return resp, nil
		}

		lastProvErr = categorizeProviderError(err)
		reqCtx.LogError("API call failed (attempt %d/%d): %s", attempt, config.MaxAttempts, lastProvErr.Error())

		// Never burn the request deadline retrying a call that already hit it
		if lastProvErr.Timeout || !lastProvErr.Retryable {
			return nil, lastProvErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		delay := calculateBackoff(attempt, config)
		if lastProvErr.Category == "rate_limit" {
			delay = delay * 2
			reqCtx.LogWarning("Rate limit hit, waiting %v before retry", delay)
		} else {
			reqCtx.LogInfo("Waiting %v before retry", delay)
		}

		select {
		case <-ctx.Done():
			return nil, categorizeProviderError(ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, lastProvErr
}

// calculateBackoff computes exponential backoff delay
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= config.BackoffMultiple
	}

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

// logContext is the subset of RequestContext the retry loop needs
type logContext interface {
	LogInfo(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
}
