package export

import (
	"encoding/json"
	"fmt"

	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/ginjaninja78/invoice-export/internal/types"
)

// JSONExporter writes invoices as indented JSON. One invoice is written as
// an object, several as an array.
//
// With Customs set the output is TAKS-ready: product numbers and HS codes
// lose their dots and numbers become strings with a decimal comma.
type JSONExporter struct {
	Customs bool
}

func (e *JSONExporter) Name() string {
	if e.Customs {
		return "customs-json"
	}
	return "json"
}

func (e *JSONExporter) MIMEType() string  { return "application/json" }
func (e *JSONExporter) Extension() string { return ".json" }

// Export encodes the invoices.
func (e *JSONExporter) Export(invoices []*types.Invoice) (*Result, error) {
	lineItems, err := checkInvoices(invoices)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if e.Customs {
		converted := make([]customsInvoice, len(invoices))
		for i, inv := range invoices {
			converted[i] = toCustoms(inv)
		}
		doc = converted
		if len(converted) == 1 {
			doc = converted[0]
		}
	} else {
		doc = invoices
		if len(invoices) == 1 {
			doc = invoices[0]
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &Result{Data: data, Invoices: len(invoices), LineItems: lineItems}, nil
}

// =============================================================================
// CUSTOMS JSON
// =============================================================================

// customsInvoice replaces the line items of an invoice with their
// TAKS-ready form.
type customsInvoice struct {
	types.Invoice
	LineItems []customsLineItem `json:"lineItems"`
}

type customsLineItem struct {
	ID              string `json:"id,omitempty"`
	ProductNumber   string `json:"productNumber,omitempty"`
	HSCode          string `json:"hsCode"`
	Description     string `json:"description"`
	CountryOfOrigin string `json:"countryOfOrigin"`
	Quantity        string `json:"quantity"`
	UnitPrice       string `json:"unitPrice"`
	Amount          string `json:"amount"`
	Weight          string `json:"weight"`
	UnitCode        string `json:"unitCode,omitempty"`
	CustomsCode     string `json:"customsCode"`
	Tariff          string `json:"tariff"`
	DutyFree        bool   `json:"dutyFree"`
	Taxable         bool   `json:"taxable,omitempty"`
}

func toCustoms(inv *types.Invoice) customsInvoice {
	out := customsInvoice{
		Invoice:   *inv,
		LineItems: make([]customsLineItem, len(inv.LineItems)),
	}
	out.Invoice.LineItems = nil

	for i, item := range inv.LineItems {
		out.LineItems[i] = customsLineItem{
			ID:              item.ID,
			ProductNumber:   taks.StripDots(item.ProductNumber),
			HSCode:          taks.StripDots(item.HSCode),
			Description:     item.Description,
			CountryOfOrigin: item.CountryOfOrigin,
			Quantity:        plain(item.Quantity),
			UnitPrice:       plain(item.UnitPrice),
			Amount:          plain(item.Amount),
			Weight:          weight(item.Weight),
			UnitCode:        item.UnitCode,
			CustomsCode:     item.CustomsCode,
			Tariff:          plain(item.Tariff),
			DutyFree:        item.DutyFree,
			Taxable:         item.Taxable,
		}
	}
	return out
}

// plain renders n with a decimal comma, or "" when n is unusable.
func plain(n types.Number) string {
	f, ok := n.Float()
	if !ok {
		return ""
	}
	return taks.FormatPlain(f)
}

func weight(n types.Number) string {
	f, ok := n.Float()
	if !ok {
		return ""
	}
	return taks.FormatDecimal(f, taks.WeightPrecision)
}
