package invoiceparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/invoice-export/internal/types"
)

// =============================================================================
// CSV FILES
// =============================================================================
//
// FILE LAYOUT:
//   A header row naming the columns, then one line item per row. Header
//   columns (Invoice Number, Invoice Date, Customer Name, ...) repeat on
//   every row; rows with the same invoice number form one invoice, in order
//   of first occurrence. Without an invoice number column the whole file is
//   one invoice.
//
//   Invoice Number,Invoice Date,HS Code,Description,Quantity,Amount
//   314188,2023-12-03,6117.80.80,Buff,1000,2438.74
//   314188,2023-12-03,9999.99.99,Opstart,1,150
//
// The delimiter is sniffed from the header row: ';' when it outnumbers ','.

// utf8BOM is written by spreadsheet CSV exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads invoices from a CSV file.
func ParseCSV(r io.Reader) ([]*types.Invoice, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: CSV file is empty", types.ErrMalformedInput)
	}

	headers := cleanHeaders(rows[0])
	return groupRows(headers, rows[1:]), nil
}

// sniffDelimiter inspects the first line of data.
func sniffDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// cleanHeaders trims header names.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// groupRows builds invoices from data rows, grouping by invoice number.
//
// GROUPING LOGIC:
//   Rows sharing an invoice number belong to the same invoice. Invoices keep
//   the order in which their number first appears; header fields are taken
//   from that first row.
func groupRows(headers []string, rows [][]string) []*types.Invoice {
	groups := make(map[string]*types.Invoice)
	var order []*types.Invoice

	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}

		var header types.Invoice
		var item types.LineItem
		for col, name := range headers {
			if col >= len(row) {
				continue
			}
			if !setInvoiceField(&header, name, row[col]) {
				setLineItemField(&item, name, row[col])
			}
		}

		inv, ok := groups[header.InvoiceNumber]
		if !ok {
			inv = &header
			inv.LineItems = []types.LineItem{}
			groups[header.InvoiceNumber] = inv
			order = append(order, inv)
		}
		inv.LineItems = append(inv.LineItems, item)
	}

	return order
}
