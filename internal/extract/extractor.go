// extractor.go - Extraction orchestrator: image in, line items or typed failure out

package extract

import (
	"context"
	"errors"
	"time"

	"github.com/bosocmputer/invoice_ocr_gemini/configs"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/ai"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/common"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/processor"
)

// AllowedMimeTypes are the upload types the pipeline accepts
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Extractor drives one extraction: gate, preprocess, model call, normalize, map
type Extractor struct {
	provider   ai.Provider
	timeout    time.Duration
	preprocess bool
}

// NewExtractor builds an extractor around the given provider using the
// configured timeout and preprocessing toggle
func NewExtractor(provider ai.Provider) *Extractor {
	return &Extractor{
		provider:   provider,
		timeout:    time.Duration(configs.EXTRACT_TIMEOUT) * time.Second,
		preprocess: configs.ENABLE_IMAGE_PREPROCESSING,
	}
}

// Extract runs the full pipeline on one uploaded image. The provider is
// called exactly once per request; all failures come back as
// *common.ExtractionError so the transport layer can map them directly.
func (e *Extractor) Extract(ctx context.Context, image []byte, mimeType string, reqCtx *common.RequestContext) ([]processor.LineItem, error) {
	// Media gate sits before any remote work; a rejected upload must never
	// cost a model call
	if !AllowedMimeTypes[mimeType] {
		return nil, common.NewUnsupportedMediaError(415, "unsupported media type: "+mimeType+" (supported: image/jpeg, image/png)")
	}

	if e.preprocess {
		reqCtx.StartStep("image_preprocessing")
		processed, processedMime, err := processor.PreprocessImage(image, mimeType)
		if err != nil {
			// Preprocessing is an enhancement, not a gate
			reqCtx.LogWarning("Preprocessing failed, using original image: %v", err)
			reqCtx.EndStep("skipped", nil, nil)
		} else {
			image, mimeType = processed, processedMime
			reqCtx.EndStep("success", nil, nil)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reqCtx.StartStep("model_extraction")
	prompt := ai.BuildInvoiceExtractionPrompt()
	rawText, tokens, err := e.provider.Generate(callCtx, prompt, image, mimeType, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, mapProviderError(callCtx, err)
	}
	reqCtx.EndStep("success", tokens, nil)

	reqCtx.StartStep("normalize_response")
	candidate, err := processor.Normalize(rawText)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		var normErr *processor.NormalizeError
		if errors.As(err, &normErr) {
			return nil, common.NewMalformedResponseError("model response could not be parsed", normErr.RawText, err)
		}
		return nil, common.NewMalformedResponseError("model response could not be parsed", rawText, err)
	}
	reqCtx.EndStep("success", nil, nil)

	reqCtx.StartStep("map_line_items")
	items, err := processor.MapLineItems(candidate)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, common.NewSchemaError("no valid line items found", err)
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.LogInfo("Extracted %d line item(s)", len(items))

	return items, nil
}

// mapProviderError classifies an upstream failure as timeout or service error
func mapProviderError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return common.NewUpstreamTimeoutError("model call exceeded the request deadline", err)
	}

	var provErr *ai.ProviderError
	if errors.As(err, &provErr) {
		if provErr.Timeout {
			return common.NewUpstreamTimeoutError("model call exceeded the request deadline", err)
		}
		return common.NewUpstreamServiceError(provErr.Message, err)
	}

	return common.NewUpstreamServiceError("model call failed", err)
}
