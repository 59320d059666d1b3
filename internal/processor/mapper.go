// mapper.go - Maps normalized model output onto the invoice line-item schema

package processor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LineItem is one extracted invoice line. Description and TotalAmount are
// always present; every other field is null when the invoice does not show it.
type LineItem struct {
	ItemID      *string  `json:"item_id"`
	Description string   `json:"description"`
	UnitPrice   *float64 `json:"unit_price"`
	Quantity    *float64 `json:"quantity"`
	Tax         *float64 `json:"tax"`
	TotalAmount float64  `json:"total_amount"`
	InvoiceDate *string  `json:"invoice_date"`
}

// SchemaError reports parseable model output that yielded no usable line items
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return e.Reason
}

// Envelope keys models wrap the item list in, checked in order
var envelopeKeys = []string{"data", "products", "items", "line_items", "invoice_items", "records", "result"}

// fieldSynonyms maps canonical field names to the key variants models emit.
// Lookup is case-insensitive with spaces and dashes folded to underscores.
var fieldSynonyms = map[string][]string{
	"item_id":      {"item_id", "itemid", "id", "item_code", "item_no", "product_id", "product_code", "code", "sku"},
	"description":  {"description", "item_description", "desc", "item_name", "product_name", "product", "name", "item"},
	"unit_price":   {"unit_price", "unitprice", "price", "unit_cost", "price_per_unit", "rate"},
	"quantity":     {"quantity", "qty", "count", "units"},
	"tax":          {"tax", "tax_amount", "vat", "vat_amount"},
	"total_amount": {"total_amount", "total", "amount", "line_total", "total_price", "subtotal"},
	"invoice_date": {"invoice_date", "invoicedate", "date"},
}

// Invoice-level date keys looked up on envelope objects
var envelopeDateKeys = []string{"invoice_date", "date"}

// MapLineItems coerces a normalized structure into the line-item schema.
// Records missing a description or a parseable total amount are dropped.
// Returns a SchemaError when nothing survives.
func MapLineItems(candidate interface{}) ([]LineItem, error) {
	records, invoiceDate := unwrapRecords(candidate, nil)

	items := make([]LineItem, 0, len(records))
	for _, record := range records {
		fields, ok := record.(map[string]interface{})
		if !ok {
			continue
		}

		item, ok := mapRecord(fields)
		if !ok {
			continue
		}

		if item.InvoiceDate == nil && invoiceDate != nil {
			item.InvoiceDate = invoiceDate
		}

		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, &SchemaError{Reason: "no valid line items found"}
	}

	return items, nil
}

// unwrapRecords digs through wrapper objects until it reaches the item list.
// An invoice-level date seen on the way down is carried along so it can be
// propagated onto items that lack their own.
func unwrapRecords(candidate interface{}, invoiceDate *string) ([]interface{}, *string) {
	switch value := candidate.(type) {
	case []interface{}:
		return value, invoiceDate

	case map[string]interface{}:
		folded := make(map[string]interface{}, len(value))
		for k, v := range value {
			folded[foldKey(k)] = v
		}

		if invoiceDate == nil {
			for _, key := range envelopeDateKeys {
				if raw, exists := folded[key]; exists {
					if date := coerceDate(raw); date != nil {
						invoiceDate = date
						break
					}
				}
			}
		}

		for _, key := range envelopeKeys {
			if inner, exists := folded[key]; exists {
				switch inner.(type) {
				case []interface{}, map[string]interface{}:
					return unwrapRecords(inner, invoiceDate)
				}
			}
		}

		// Not an envelope: treat the object as a single record
		return []interface{}{value}, invoiceDate
	}

	return nil, invoiceDate
}

// mapRecord builds a LineItem from one record. Returns false when the record
// lacks a description or a parseable total amount.
func mapRecord(fields map[string]interface{}) (LineItem, bool) {
	folded := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		folded[foldKey(k)] = v
	}

	lookup := func(canonical string) (interface{}, bool) {
		for _, synonym := range fieldSynonyms[canonical] {
			if value, exists := folded[synonym]; exists && value != nil {
				return value, true
			}
		}
		return nil, false
	}

	var item LineItem

	if raw, ok := lookup("description"); ok {
		item.Description = strings.TrimSpace(coerceString(raw))
	}
	if item.Description == "" {
		return LineItem{}, false
	}

	rawTotal, ok := lookup("total_amount")
	if !ok {
		return LineItem{}, false
	}
	total := coerceNumber(rawTotal)
	if total == nil {
		return LineItem{}, false
	}
	item.TotalAmount = *total

	if raw, ok := lookup("item_id"); ok {
		if id := strings.TrimSpace(coerceString(raw)); id != "" {
			item.ItemID = &id
		}
	}
	if raw, ok := lookup("unit_price"); ok {
		item.UnitPrice = coerceNumber(raw)
	}
	if raw, ok := lookup("quantity"); ok {
		item.Quantity = coerceNumber(raw)
	}
	if raw, ok := lookup("tax"); ok {
		item.Tax = coerceNumber(raw)
	}
	if raw, ok := lookup("invoice_date"); ok {
		item.InvoiceDate = coerceDate(raw)
	}

	return item, true
}

// foldKey lowercases a key and folds spaces and dashes to underscores
func foldKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

// coerceString renders any scalar as a string
func coerceString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// europeanNumberPattern matches amounts like 1.234,56 where dots group
// thousands and the comma is the decimal point
var europeanNumberPattern = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+(,\d+)$`)

// coerceNumber parses numeric values out of model output. Strings may carry
// currency symbols, thousands separators, and Arabic-Indic digits.
// Returns nil when no number can be recovered.
func coerceNumber(value interface{}) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case string:
		return parseAmount(v)
	default:
		return nil
	}
}

// parseAmount extracts a float from a free-form amount string
func parseAmount(raw string) *float64 {
	cleaned := foldArabicDigits(strings.TrimSpace(raw))

	// Keep digits, separators, and sign; drop currency symbols and letters
	var builder strings.Builder
	for _, ch := range cleaned {
		if (ch >= '0' && ch <= '9') || ch == '.' || ch == ',' || ch == '-' {
			builder.WriteRune(ch)
		}
	}
	cleaned = builder.String()
	if cleaned == "" || cleaned == "-" {
		return nil
	}

	if europeanNumberPattern.MatchString(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		// Dot decimal convention: commas are thousands separators
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// foldArabicDigits maps Arabic-Indic digits and separators to their ASCII
// equivalents so numeric and date parsing see one alphabet
func foldArabicDigits(s string) string {
	var builder strings.Builder
	for _, ch := range s {
		switch {
		case ch >= '٠' && ch <= '٩': // ٠-٩
			builder.WriteRune('0' + (ch - '٠'))
		case ch >= '۰' && ch <= '۹': // ۰-۹
			builder.WriteRune('0' + (ch - '۰'))
		case ch == '٫': // Arabic decimal separator
			builder.WriteRune('.')
		case ch == '٬': // Arabic thousands separator
			builder.WriteRune(',')
		default:
			builder.WriteRune(ch)
		}
	}
	return builder.String()
}

// Accepted date shapes: DD-MM-YYYY, YYYY-MM-DD, with -, /, or . separators
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}$`),
	regexp.MustCompile(`^\d{4}[-/.]\d{1,2}[-/.]\d{1,2}$`),
}

// coerceDate accepts date-like strings and nulls out everything else rather
// than guessing
func coerceDate(value interface{}) *string {
	s, ok := value.(string)
	if !ok {
		return nil
	}

	s = foldArabicDigits(strings.TrimSpace(s))
	if s == "" {
		return nil
	}

	for _, pattern := range datePatterns {
		if pattern.MatchString(s) {
			return &s
		}
	}

	return nil
}
