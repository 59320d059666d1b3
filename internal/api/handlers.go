// handlers.go - HTTP handlers for invoice extraction and export

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bosocmputer/invoice_ocr_gemini/configs"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/common"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/export"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/extract"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// Handler wires the extraction pipeline and result cache to HTTP routes
type Handler struct {
	extractor *extract.Extractor
	cache     *storage.ResultCache
}

// NewHandler builds the handler around an extractor
func NewHandler(extractor *extract.Extractor) *Handler {
	ttl := time.Duration(configs.RESULT_CACHE_TTL) * time.Second
	return &Handler{
		extractor: extractor,
		cache:     storage.NewResultCache(ttl),
	}
}

// RegisterRoutes attaches the API routes to the router
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/extract-invoice", h.ExtractInvoice)
		v1.GET("/invoices/:id/export", h.ExportInvoice)
	}
}

// ExtractInvoice handles POST /api/v1/extract-invoice.
// Accepts a multipart "file" field, gates size and sniffed media type before
// any model work, and on success returns the bare JSON array of line items.
// The X-Request-Id header carries the key for the export endpoint.
func (h *Handler) ExtractInvoice(c *gin.Context) {
	reqCtx := common.NewRequestContext()
	c.Header("X-Request-Id", reqCtx.RequestID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		reqCtx.LogError("No file in request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error_kind": "bad_request",
			"message":    "multipart field 'file' is required",
		})
		return
	}

	// Size gate from the multipart header, before reading the body
	if fileHeader.Size > configs.MAX_UPLOAD_BYTES {
		reqCtx.LogWarning("Upload rejected: %d bytes exceeds limit of %d", fileHeader.Size, configs.MAX_UPLOAD_BYTES)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error_kind": string(common.ErrUnsupportedMedia),
			"message":    fmt.Sprintf("file exceeds maximum upload size of %d bytes", configs.MAX_UPLOAD_BYTES),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		reqCtx.LogError("Failed to open upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_kind": "internal_error",
			"message":    "failed to read uploaded file",
		})
		return
	}
	defer file.Close()

	// Hard cap the read as well; the multipart header size is client-supplied
	imageData, err := io.ReadAll(io.LimitReader(file, configs.MAX_UPLOAD_BYTES+1))
	if err != nil {
		reqCtx.LogError("Failed to read upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_kind": "internal_error",
			"message":    "failed to read uploaded file",
		})
		return
	}
	if int64(len(imageData)) > configs.MAX_UPLOAD_BYTES {
		reqCtx.LogWarning("Upload rejected: body larger than declared size")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error_kind": string(common.ErrUnsupportedMedia),
			"message":    fmt.Sprintf("file exceeds maximum upload size of %d bytes", configs.MAX_UPLOAD_BYTES),
		})
		return
	}

	// Media type comes from content sniffing, never from the filename
	detected := mimetype.Detect(imageData)
	mimeType := detected.String()
	reqCtx.LogInfo("📄 Upload: %s, %d bytes, sniffed type %s", fileHeader.Filename, len(imageData), mimeType)

	items, err := h.extractor.Extract(c.Request.Context(), imageData, mimeType, reqCtx)
	if err != nil {
		h.writeExtractionError(c, reqCtx, err)
		return
	}

	h.cache.Put(reqCtx.RequestID, items)
	reqCtx.GetSummary()

	c.JSON(http.StatusOK, items)
}

// ExportInvoice handles GET /api/v1/invoices/:id/export?format=csv|xlsx.
// Serves a cached extraction result; 404 once the TTL has expired.
func (h *Handler) ExportInvoice(c *gin.Context) {
	requestID := c.Param("id")
	format := c.DefaultQuery("format", "csv")

	items, found := h.cache.Get(requestID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error_kind": "not_found",
			"message":    "no cached result for this id (results expire after the cache TTL)",
		})
		return
	}

	switch format {
	case "csv":
		data, err := export.ToCSV(items)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_kind": "internal_error",
				"message":    "failed to render CSV export",
			})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.csv"`, requestID))
		c.Data(http.StatusOK, "text/csv", data)

	case "xlsx":
		data, err := export.ToXLSX(items)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_kind": "internal_error",
				"message":    "failed to render XLSX export",
			})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.xlsx"`, requestID))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)

	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error_kind": "bad_request",
			"message":    "unsupported format: " + format + " (supported: csv, xlsx)",
		})
	}
}

// writeExtractionError maps a pipeline failure onto the error payload contract
func (h *Handler) writeExtractionError(c *gin.Context, reqCtx *common.RequestContext, err error) {
	var extErr *common.ExtractionError
	if !errors.As(err, &extErr) {
		reqCtx.LogError("Unclassified extraction failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_kind": "internal_error",
			"message":    "extraction failed",
		})
		return
	}

	reqCtx.LogError("Extraction failed (%s): %s", extErr.Kind, extErr.Message)
	if extErr.RawText != "" {
		preview := extErr.RawText
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		reqCtx.LogInfo("Raw model response preview: %s", preview)
	}

	c.JSON(extErr.StatusCode, gin.H{
		"error_kind": string(extErr.Kind),
		"message":    extErr.Message,
	})
}
