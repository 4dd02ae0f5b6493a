// =============================================================================
// Invoice Export - Shared Types
// =============================================================================
//
// This package contains the invoice record consumed by every exporter. It is
// shared by:
//   - invoiceparser (decodes files into these types)
//   - validation    (pre-export checks)
//   - taks, export  (encoders)
//
// Fields are decoded loosely: numeric fields come from edited form state and
// may be strings, numbers, or missing (see Number), text fields accept
// numbers, and flags accept "J"/"true"/1 (see loose.go).
//
// =============================================================================

package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedInput is returned when an invoice is structurally unusable,
// i.e. its line items are missing or not a list.
var ErrMalformedInput = errors.New("malformed invoice input")

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is the header of one invoice plus its ordered line items.
type Invoice struct {
	InvoiceNumber   string `json:"invoiceNumber" yaml:"invoiceNumber"`
	InvoiceDate     string `json:"invoiceDate" yaml:"invoiceDate"`
	DueDate         string `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	Sender          string `json:"sender,omitempty" yaml:"sender,omitempty"`
	DocumentNumber  string `json:"documentNumber,omitempty" yaml:"documentNumber,omitempty"`
	PaymentMethod   string `json:"paymentMethod,omitempty" yaml:"paymentMethod,omitempty"`
	Notes           string `json:"notes,omitempty" yaml:"notes,omitempty"`
	CustomerNumber  string `json:"customerNumber" yaml:"customerNumber"`
	CustomerName    string `json:"customerName" yaml:"customerName"`
	CustomerAddress string `json:"customerAddress,omitempty" yaml:"customerAddress,omitempty"`
	Currency        string `json:"currency" yaml:"currency"`
	Reference       string `json:"reference" yaml:"reference"`
	VATNumber       string `json:"vatNumber,omitempty" yaml:"vatNumber,omitempty"`

	// LineItems keeps insertion order; the Nth item becomes the Nth
	// numbered record group in TAKS output. A nil slice means the items
	// were never supplied and is treated as malformed input.
	LineItems []LineItem `json:"lineItems" yaml:"lineItems"`
}

// LineItem is one invoiced good.
type LineItem struct {
	ID              string `json:"id,omitempty" yaml:"id,omitempty"`
	ProductNumber   string `json:"productNumber,omitempty" yaml:"productNumber,omitempty"`
	HSCode          string `json:"hsCode" yaml:"hsCode"`
	Description     string `json:"description" yaml:"description"`
	CountryOfOrigin string `json:"countryOfOrigin" yaml:"countryOfOrigin"`
	Quantity        Number `json:"quantity" yaml:"quantity"`
	UnitPrice       Number `json:"unitPrice" yaml:"unitPrice"`
	Amount          Number `json:"amount" yaml:"amount"`

	// Weight is the net weight in kilograms.
	Weight      Number `json:"weight" yaml:"weight"`
	UnitCode    string `json:"unitCode,omitempty" yaml:"unitCode,omitempty"`
	CustomsCode string `json:"customsCode" yaml:"customsCode"`
	Tariff      Number `json:"tariff" yaml:"tariff"`
	DutyFree    bool   `json:"dutyFree" yaml:"dutyFree"`
	Taxable     bool   `json:"taxable,omitempty" yaml:"taxable,omitempty"`
}

// UnmarshalJSON decodes an invoice and enforces that lineItems is present
// and is a JSON array. Text fields accept numbers and flags accept the
// ParseFlag spellings, so a mistyped field never rejects the invoice.
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	raw, ok := probe["lineItems"]
	if !ok {
		return fmt.Errorf("%w: lineItems is missing", ErrMalformedInput)
	}
	if !isJSONArray(raw) {
		return fmt.Errorf("%w: lineItems is not a list", ErrMalformedInput)
	}

	var decoded invoiceWire
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if decoded.LineItems == nil {
		decoded.LineItems = []LineItem{}
	}

	*inv = decoded.invoice()
	return nil
}

// isJSONArray reports whether raw starts with '[' after leading whitespace.
func isJSONArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// SenderName returns the name written into the sender slot of export
// records: the sender when known, otherwise the customer name.
func (inv *Invoice) SenderName() string {
	if inv.Sender != "" {
		return inv.Sender
	}
	return inv.CustomerName
}
