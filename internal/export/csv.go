package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/ginjaninja78/invoice-export/internal/types"
)

// CSVHeaders are the columns of the CSV export, in order.
var CSVHeaders = []string{"HS Code", "Country of Origin", "Description", "Quantity", "Unit Price", "Amount"}

// CSVExporter writes one row per line item. Rows of several invoices are
// written one after another under a single header.
type CSVExporter struct{}

func (e *CSVExporter) Name() string      { return "csv" }
func (e *CSVExporter) MIMEType() string  { return "text/csv" }
func (e *CSVExporter) Extension() string { return ".csv" }

// Export encodes the invoices.
func (e *CSVExporter) Export(invoices []*types.Invoice) (*Result, error) {
	lineItems, err := checkInvoices(invoices)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, inv := range invoices {
		for _, item := range inv.LineItems {
			hs := item.HSCode
			if hs == "" {
				hs = item.ProductNumber
			}
			row := []string{
				hs,
				item.CountryOfOrigin,
				item.Description,
				dotDecimal(item.Quantity),
				dotDecimal(item.UnitPrice),
				dotDecimal(item.Amount),
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}

	return &Result{Data: buf.Bytes(), Invoices: len(invoices), LineItems: lineItems}, nil
}
