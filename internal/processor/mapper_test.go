package processor

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// decode is a test helper producing the same structures Normalize returns
func decode(raw string) interface{} {
	var value interface{}
	Expect(json.Unmarshal([]byte(raw), &value)).To(Succeed())
	return value
}

var _ = Describe("MapLineItems", func() {
	var (
		candidate interface{}
		items     []LineItem
		err       error
	)

	JustBeforeEach(func() {
		items, err = MapLineItems(candidate)
	})

	When("mapping a minimal valid record", func() {
		BeforeEach(func() {
			candidate = decode(`[{"description": "Widget", "total_amount": "12.50"}]`)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should produce one item", func() {
			Expect(items).To(HaveLen(1))
		})

		It("should parse the amount string", func() {
			Expect(items[0].Description).To(Equal("Widget"))
			Expect(items[0].TotalAmount).To(Equal(12.50))
		})

		It("should leave absent fields null", func() {
			Expect(items[0].ItemID).To(BeNil())
			Expect(items[0].UnitPrice).To(BeNil())
			Expect(items[0].Quantity).To(BeNil())
			Expect(items[0].Tax).To(BeNil())
			Expect(items[0].InvoiceDate).To(BeNil())
		})
	})

	When("every record lacks a description and an amount", func() {
		BeforeEach(func() {
			candidate = decode(`[{"item_id": "1"}]`)
		})

		It("returns a SchemaError", func() {
			Expect(err).To(HaveOccurred())
			var schemaErr *SchemaError
			Expect(errors.As(err, &schemaErr)).To(BeTrue())
			Expect(schemaErr.Error()).To(ContainSubstring("no valid line items"))
		})

		It("returns no items", func() {
			Expect(items).To(BeEmpty())
		})
	})

	When("records use synonym keys with mixed casing", func() {
		BeforeEach(func() {
			candidate = decode(`[{
				"Item_Description": "Bolt M8",
				"Amount": 3.2,
				"Qty": 10,
				"Price": 0.32,
				"VAT": 0.48,
				"Product_ID": "B-08"
			}]`)
		})

		It("should map every synonym onto its canonical field", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))

			item := items[0]
			Expect(item.Description).To(Equal("Bolt M8"))
			Expect(item.TotalAmount).To(Equal(3.2))
			Expect(*item.Quantity).To(Equal(10.0))
			Expect(*item.UnitPrice).To(Equal(0.32))
			Expect(*item.Tax).To(Equal(0.48))
			Expect(*item.ItemID).To(Equal("B-08"))
		})
	})

	When("amounts carry currency symbols and thousands separators", func() {
		BeforeEach(func() {
			candidate = decode(`[
				{"description": "Server rack", "total_amount": "$1,234.56"},
				{"description": "Cabling", "total_amount": "1.234,56"},
				{"description": "Labour", "total_amount": "SAR 500"}
			]`)
		})

		It("should parse each convention", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(3))
			Expect(items[0].TotalAmount).To(Equal(1234.56))
			Expect(items[1].TotalAmount).To(Equal(1234.56))
			Expect(items[2].TotalAmount).To(Equal(500.0))
		})
	})

	When("values use Arabic-Indic digits", func() {
		BeforeEach(func() {
			candidate = decode(`[{"description": "خدمة صيانة", "total_amount": "١٢.٥٠", "invoice_date": "١٥-٠١-٢٠٢٤"}]`)
		})

		It("should fold the digits before parsing", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Description).To(Equal("خدمة صيانة"))
			Expect(items[0].TotalAmount).To(Equal(12.50))
			Expect(*items[0].InvoiceDate).To(Equal("15-01-2024"))
		})
	})

	When("the items are wrapped in a data envelope with an invoice-level date", func() {
		BeforeEach(func() {
			candidate = decode(`{
				"data": {
					"date": "15-01-2024",
					"products": [
						{"description": "Widget", "total_amount": 12.5},
						{"description": "Gadget", "total_amount": 20, "invoice_date": "16-01-2024"}
					]
				}
			}`)
		})

		It("should unwrap the envelope", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
		})

		It("should propagate the invoice date onto items without one", func() {
			Expect(*items[0].InvoiceDate).To(Equal("15-01-2024"))
		})

		It("should keep an item's own date when present", func() {
			Expect(*items[1].InvoiceDate).To(Equal("16-01-2024"))
		})
	})

	When("a date value is not date-like", func() {
		BeforeEach(func() {
			candidate = decode(`[{"description": "Widget", "total_amount": 12.5, "invoice_date": "sometime last week"}]`)
		})

		It("nulls the date instead of guessing", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items[0].InvoiceDate).To(BeNil())
		})
	})

	When("invalid records sit alongside valid ones", func() {
		BeforeEach(func() {
			candidate = decode(`[
				{"description": "Widget", "total_amount": 12.5},
				{"item_id": "2"},
				{"description": "Gadget", "total_amount": "not a number"},
				{"description": "", "total_amount": 5}
			]`)
		})

		It("keeps only the valid record", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Description).To(Equal("Widget"))
		})
	})

	When("a numeric item id is given as a number", func() {
		BeforeEach(func() {
			candidate = decode(`[{"item_id": 7, "description": "Widget", "total_amount": 12.5}]`)
		})

		It("coerces it to a string", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*items[0].ItemID).To(Equal("7"))
		})
	})

	When("the candidate is a single record object", func() {
		BeforeEach(func() {
			candidate = decode(`{"description": "Widget", "total_amount": 12.5}`)
		})

		It("treats it as a one-element list", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
		})
	})

	When("serializing a mapped item", func() {
		BeforeEach(func() {
			candidate = decode(`[{"description": "Widget", "total_amount": 12.5}]`)
		})

		It("emits explicit nulls for absent fields", func() {
			Expect(err).NotTo(HaveOccurred())
			data, marshalErr := json.Marshal(items[0])
			Expect(marshalErr).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"item_id":null`))
			Expect(string(data)).To(ContainSubstring(`"unit_price":null`))
			Expect(string(data)).To(ContainSubstring(`"invoice_date":null`))
		})
	})
})
