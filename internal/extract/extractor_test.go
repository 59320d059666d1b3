package extract

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bosocmputer/invoice_ocr_gemini/configs"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/common"
	"github.com/bosocmputer/invoice_ocr_gemini/internal/processor"
)

// fakeProvider is a scripted model backend counting how often it is called
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
	return f.response, &common.TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}, nil
}

func (f *fakeProvider) Name() string {
	return "fake"
}

var _ = Describe("Extractor", func() {
	var (
		provider  *fakeProvider
		extractor *Extractor
		mimeType  string
		items     []processor.LineItem
		err       error
	)

	BeforeEach(func() {
		configs.EXTRACT_TIMEOUT = 45
		configs.ENABLE_IMAGE_PREPROCESSING = false

		provider = &fakeProvider{}
		mimeType = "image/png"
	})

	JustBeforeEach(func() {
		extractor = NewExtractor(provider)
		reqCtx := common.NewRequestContext()
		items, err = extractor.Extract(context.Background(), []byte("image-bytes"), mimeType, reqCtx)
	})

	When("the model returns a clean line-item array", func() {
		BeforeEach(func() {
			provider.response = `[{"description": "Widget", "total_amount": 12.5}]`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the mapped items", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Description).To(Equal("Widget"))
			Expect(items[0].TotalAmount).To(Equal(12.5))
		})

		It("should call the provider exactly once", func() {
			Expect(provider.callCount).To(Equal(1))
		})
	})

	When("the model wraps the array in prose and a fence", func() {
		BeforeEach(func() {
			provider.response = "Here is the data:\n```json\n[{\"description\":\"Widget\",\"total_amount\":\"12.50\",}]\n```"
		})

		It("should still produce the item", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Description).To(Equal("Widget"))
			Expect(items[0].TotalAmount).To(Equal(12.5))
		})
	})

	When("the upload is not a supported image type", func() {
		BeforeEach(func() {
			mimeType = "application/pdf"
		})

		It("returns an unsupported_media failure", func() {
			Expect(common.KindOf(err)).To(Equal(common.ErrUnsupportedMedia))
		})

		It("carries the 415 status", func() {
			var extErr *common.ExtractionError
			Expect(errors.As(err, &extErr)).To(BeTrue())
			Expect(extErr.StatusCode).To(Equal(415))
		})

		It("never calls the provider", func() {
			Expect(provider.callCount).To(BeZero())
		})
	})

	When("the model call fails", func() {
		BeforeEach(func() {
			provider.err = errors.New("upstream exploded")
		})

		It("returns an upstream_error failure", func() {
			Expect(common.KindOf(err)).To(Equal(common.ErrUpstreamService))
		})
	})

	When("the model call hits the deadline", func() {
		BeforeEach(func() {
			provider.err = context.DeadlineExceeded
		})

		It("returns an upstream_timeout failure", func() {
			Expect(common.KindOf(err)).To(Equal(common.ErrUpstreamTimeout))
		})

		It("carries the 504 status", func() {
			var extErr *common.ExtractionError
			Expect(errors.As(err, &extErr)).To(BeTrue())
			Expect(extErr.StatusCode).To(Equal(504))
		})
	})

	When("the model returns text that is not JSON", func() {
		BeforeEach(func() {
			provider.response = "not json at all"
		})

		It("returns a malformed_response failure", func() {
			Expect(common.KindOf(err)).To(Equal(common.ErrMalformedResponse))
		})

		It("retains the raw response for diagnostics", func() {
			var extErr *common.ExtractionError
			Expect(errors.As(err, &extErr)).To(BeTrue())
			Expect(extErr.RawText).To(Equal("not json at all"))
		})
	})

	When("the model returns records without usable fields", func() {
		BeforeEach(func() {
			provider.response = `[{"item_id": "1"}]`
		})

		It("returns a schema_error failure", func() {
			Expect(common.KindOf(err)).To(Equal(common.ErrSchema))
		})

		It("carries the 422 status", func() {
			var extErr *common.ExtractionError
			Expect(errors.As(err, &extErr)).To(BeTrue())
			Expect(extErr.StatusCode).To(Equal(422))
		})
	})
})
