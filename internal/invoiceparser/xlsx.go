package invoiceparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/invoice-export/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// XLSX WORKBOOKS
// =============================================================================
//
// WORKBOOK LAYOUT:
//
//   Sheet "Invoice" (optional)        Sheet "LineItems" (required)
//   | A              | B          |   | HS Code    | Description | Quantity | ...
//   |----------------|------------|   |------------|-------------|----------|
//   | Invoice Number | 314188     |   | 6117.80.80 | Buff        | 1000     |
//   | Invoice Date   | 2023-12-03 |   | 9999.99.99 | Opstart     | 1        |
//
// Sheet names are matched case-insensitively.

// Sheet names.
const (
	SheetInvoice   = "Invoice"
	SheetLineItems = "LineItems"
)

// ParseXLSX reads one invoice from a workbook.
func ParseXLSX(r io.Reader) ([]*types.Invoice, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	inv := &types.Invoice{}

	if sheet := findSheet(f, SheetInvoice); sheet != "" {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			if len(row) < 2 || isEmptyRow(row) {
				continue
			}
			setInvoiceField(inv, row[0], row[1])
		}
	}

	sheet := findSheet(f, SheetLineItems)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no %s sheet", types.ErrMalformedInput, SheetLineItems)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	inv.LineItems = []types.LineItem{}
	if len(rows) == 0 {
		return []*types.Invoice{inv}, nil
	}

	headers := rows[0]
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		var item types.LineItem
		for col, header := range headers {
			if col < len(row) {
				setLineItemField(&item, header, row[col])
			}
		}
		inv.LineItems = append(inv.LineItems, item)
	}

	return []*types.Invoice{inv}, nil
}

// findSheet returns the workbook's spelling of name, or "".
func findSheet(f *excelize.File, name string) string {
	for _, sheet := range f.GetSheetList() {
		if strings.EqualFold(sheet, name) {
			return sheet
		}
	}
	return ""
}
