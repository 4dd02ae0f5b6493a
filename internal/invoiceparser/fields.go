package invoiceparser

import (
	"strings"
	"unicode"

	"github.com/ginjaninja78/invoice-export/internal/types"
)

// =============================================================================
// COLUMN NAME MAPPING
// =============================================================================
//
// Spreadsheet and CSV inputs name their columns freely. Names are matched
// after normalization, so "HS Code", "hs_code" and "hsCode" are the same
// column. The export template headings are accepted as well.

// normalizeKey lowercases s and drops everything but letters and digits.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// setInvoiceField assigns value to the header field named key. It reports
// whether key names a header field.
func setInvoiceField(inv *types.Invoice, key, value string) bool {
	value = strings.TrimSpace(value)

	switch normalizeKey(key) {
	case "invoicenumber", "invoiceno", "invoice":
		inv.InvoiceNumber = value
	case "invoicedate", "date":
		inv.InvoiceDate = value
	case "duedate":
		inv.DueDate = value
	case "sender", "supplier":
		inv.Sender = value
	case "documentnumber":
		inv.DocumentNumber = value
	case "paymentmethod":
		inv.PaymentMethod = value
	case "notes":
		inv.Notes = value
	case "customernumber", "customerno":
		inv.CustomerNumber = value
	case "customername", "customer":
		inv.CustomerName = value
	case "customeraddress":
		inv.CustomerAddress = value
	case "currency":
		inv.Currency = value
	case "reference":
		inv.Reference = value
	case "vatnumber", "vat":
		inv.VATNumber = value
	default:
		return false
	}
	return true
}

// setLineItemField assigns value to the line item field named key. It
// reports whether key names a line item field.
func setLineItemField(item *types.LineItem, key, value string) bool {
	value = strings.TrimSpace(value)

	switch normalizeKey(key) {
	case "id":
		item.ID = value
	case "productnumber", "productno":
		item.ProductNumber = value
	case "hscode", "commoditycode":
		item.HSCode = value
	case "description":
		item.Description = value
	case "countryoforigin", "origin":
		item.CountryOfOrigin = strings.ToUpper(value)
	case "quantity", "qty":
		item.Quantity = types.ParseNumber(value)
	case "unitprice", "price":
		item.UnitPrice = types.ParseNumber(value)
	case "amount", "total":
		item.Amount = types.ParseNumber(value)
	case "weight", "netweight":
		item.Weight = types.ParseNumber(value)
	case "unitcode", "unit":
		item.UnitCode = value
	case "customscode":
		item.CustomsCode = value
	case "tariff":
		item.Tariff = types.ParseNumber(value)
	case "dutyfree":
		item.DutyFree = types.ParseFlag(value)
	case "taxable":
		item.Taxable = types.ParseFlag(value)
	default:
		return false
	}
	return true
}

// isEmptyRow reports whether a row contains only blank cells.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
