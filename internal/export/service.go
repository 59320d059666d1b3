// service.go - CSV and XLSX export of extracted line items

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/bosocmputer/invoice_ocr_gemini/internal/processor"
	"github.com/xuri/excelize/v2"
)

// Column headers, in the declared line-item field order
var headers = []string{"item_id", "description", "unit_price", "quantity", "tax", "total_amount", "invoice_date"}

// ToCSV renders line items as a CSV document with a header row
func ToCSV(items []processor.LineItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, item := range items {
		record := []string{
			stringOrEmpty(item.ItemID),
			item.Description,
			floatOrEmpty(item.UnitPrice),
			floatOrEmpty(item.Quantity),
			floatOrEmpty(item.Tax),
			strconv.FormatFloat(item.TotalAmount, 'f', 2, 64),
			stringOrEmpty(item.InvoiceDate),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return buf.Bytes(), nil
}

// ToXLSX renders line items as an Excel workbook with one "Line Items" sheet
func ToXLSX(items []processor.LineItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Line Items"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, item := range items {
		values := []interface{}{
			derefString(item.ItemID),
			item.Description,
			derefFloat(item.UnitPrice),
			derefFloat(item.Quantity),
			derefFloat(item.Tax),
			item.TotalAmount,
			derefString(item.InvoiceDate),
		}

		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if value == nil {
				continue
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "G", 18); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return nil, fmt.Errorf("failed to set description width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	return buf.Bytes(), nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func derefString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func derefFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
