package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bosocmputer/invoice_ocr_gemini/configs"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/common"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/extract"
)

// pngMagic is enough for content sniffing to identify image/png
var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// fakeProvider is a scripted model backend
type fakeProvider struct {
	response  string
	err       error
	callCount int
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, image []byte, mimeType string, reqCtx *common.RequestContext) (string, *common.TokenUsage, error) {
	f.callCount++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.response, nil, nil
}

func (f *fakeProvider) Name() string {
	return "fake"
}

// multipartUpload builds a multipart body with a single "file" field
func multipartUpload(filename string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Handler", func() {
	var (
		provider *fakeProvider
		router   *gin.Engine
		server   *httptest.Server
	)

	BeforeEach(func() {
		configs.MAX_UPLOAD_BYTES = 10 * 1024 * 1024
		configs.EXTRACT_TIMEOUT = 45
		configs.ENABLE_IMAGE_PREPROCESSING = false
		configs.RESULT_CACHE_TTL = 300

		provider = &fakeProvider{
			response: `[{"description": "Widget", "total_amount": 12.5}]`,
		}

		router = gin.New()
		handler := NewHandler(extract.NewExtractor(provider))
		handler.RegisterRoutes(router)
		server = httptest.NewServer(router)
	})

	AfterEach(func() {
		server.Close()
	})

	postUpload := func(filename string, content []byte) *http.Response {
		body, contentType := multipartUpload(filename, content)
		resp, err := http.Post(server.URL+"/api/v1/extract-invoice", contentType, body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("ExtractInvoice", func() {
		When("uploading a valid PNG", func() {
			It("returns 200 with the bare line-item array", func() {
				resp := postUpload("invoice.png", pngMagic)
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var items []map[string]interface{}
				Expect(json.NewDecoder(resp.Body).Decode(&items)).To(Succeed())
				Expect(items).To(HaveLen(1))
				Expect(items[0]["description"]).To(Equal("Widget"))
				Expect(items[0]["total_amount"]).To(Equal(12.5))
			})

			It("sets the X-Request-Id header", func() {
				resp := postUpload("invoice.png", pngMagic)
				defer resp.Body.Close()

				Expect(resp.Header.Get("X-Request-Id")).NotTo(BeEmpty())
			})
		})

		When("the upload is not an image", func() {
			It("returns 415 without calling the model", func() {
				resp := postUpload("invoice.txt", []byte("plain text, not an image"))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusUnsupportedMediaType))
				Expect(provider.callCount).To(BeZero())

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["error_kind"]).To(Equal("unsupported_media"))
			})
		})

		When("a PDF is disguised with a .png filename", func() {
			It("still rejects it, sniffing beats the extension", func() {
				resp := postUpload("invoice.png", []byte("%PDF-1.7 fake document"))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusUnsupportedMediaType))
				Expect(provider.callCount).To(BeZero())
			})
		})

		When("the upload exceeds the size limit", func() {
			BeforeEach(func() {
				configs.MAX_UPLOAD_BYTES = 16
			})

			It("returns 413 without calling the model", func() {
				resp := postUpload("invoice.png", append(pngMagic, make([]byte, 100)...))
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(provider.callCount).To(BeZero())

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["error_kind"]).To(Equal("unsupported_media"))
			})
		})

		When("the file field is missing", func() {
			It("returns 400", func() {
				resp, err := http.Post(server.URL+"/api/v1/extract-invoice", "application/json", bytes.NewBufferString("{}"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the model output cannot be parsed", func() {
			BeforeEach(func() {
				provider.response = "not json at all"
			})

			It("returns 422 with the malformed_response kind", func() {
				resp := postUpload("invoice.png", pngMagic)
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["error_kind"]).To(Equal("malformed_response"))
			})
		})

		When("no valid line items can be mapped", func() {
			BeforeEach(func() {
				provider.response = `[{"item_id": "1"}]`
			})

			It("returns 422 with the schema_error kind", func() {
				resp := postUpload("invoice.png", pngMagic)
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["error_kind"]).To(Equal("schema_error"))
			})
		})
	})

	Describe("ExportInvoice", func() {
		extractAndGetID := func() string {
			resp := postUpload("invoice.png", pngMagic)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			id := resp.Header.Get("X-Request-Id")
			Expect(id).NotTo(BeEmpty())
			return id
		}

		When("exporting a cached result as CSV", func() {
			It("returns the CSV with the declared column order", func() {
				id := extractAndGetID()

				resp, err := http.Get(server.URL + "/api/v1/invoices/" + id + "/export?format=csv")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/csv"))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(HavePrefix("item_id,description,unit_price,quantity,tax,total_amount,invoice_date\n"))
				Expect(string(body)).To(ContainSubstring("Widget"))
			})
		})

		When("exporting a cached result as XLSX", func() {
			It("returns a spreadsheet attachment", func() {
				id := extractAndGetID()

				resp, err := http.Get(server.URL + "/api/v1/invoices/" + id + "/export?format=xlsx")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("spreadsheetml"))
				Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring(".xlsx"))
			})
		})

		When("the id is unknown", func() {
			It("returns 404", func() {
				resp, err := http.Get(server.URL + "/api/v1/invoices/no-such-id/export?format=csv")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("the format is unsupported", func() {
			It("returns 400", func() {
				id := extractAndGetID()

				resp, err := http.Get(server.URL + "/api/v1/invoices/" + id + "/export?format=pdf")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})
})
