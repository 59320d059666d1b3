package export

import (
	"bytes"
	"encoding/csv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/bosocmputer/invoice_ocr_gemini/internal/processor"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

var _ = Describe("Export", func() {
	var items []processor.LineItem

	BeforeEach(func() {
		items = []processor.LineItem{
			{
				ItemID:      strPtr("A-1"),
				Description: "Widget",
				UnitPrice:   floatPtr(6.25),
				Quantity:    floatPtr(2),
				Tax:         floatPtr(0.5),
				TotalAmount: 12.5,
				InvoiceDate: strPtr("15-01-2024"),
			},
			{
				Description: "Gadget",
				TotalAmount: 20,
			},
		}
	})

	Describe("ToCSV", func() {
		It("writes the header in declared field order", func() {
			data, err := ToCSV(items)
			Expect(err).NotTo(HaveOccurred())

			records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0]).To(Equal([]string{"item_id", "description", "unit_price", "quantity", "tax", "total_amount", "invoice_date"}))
		})

		It("writes one row per item with empty cells for nulls", func() {
			data, err := ToCSV(items)
			Expect(err).NotTo(HaveOccurred())

			records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))

			Expect(records[1]).To(Equal([]string{"A-1", "Widget", "6.25", "2.00", "0.50", "12.50", "15-01-2024"}))
			Expect(records[2]).To(Equal([]string{"", "Gadget", "", "", "", "20.00", ""}))
		})
	})

	Describe("ToXLSX", func() {
		It("produces a workbook with the items on a Line Items sheet", func() {
			data, err := ToXLSX(items)
			Expect(err).NotTo(HaveOccurred())

			workbook, err := excelize.OpenReader(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			defer workbook.Close()

			rows, err := workbook.GetRows("Line Items")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0]).To(Equal([]string{"item_id", "description", "unit_price", "quantity", "tax", "total_amount", "invoice_date"}))
			Expect(rows[1][1]).To(Equal("Widget"))
			Expect(rows[2][1]).To(Equal("Gadget"))
		})
	})
})
