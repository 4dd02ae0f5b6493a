package types

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFlag reads the yes/no spellings found in forms and spreadsheets.
// Anything unrecognised is false, which exports as "N".
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "j", "ja", "1", "x":
		return true
	}
	return false
}

// looseString decodes any scalar as its text. Numbers keep their literal
// form, so "hsCode": 83024100 reads as "83024100". Objects, arrays and null
// decode to "".
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*s = ""
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			*s = ""
			return nil
		}
		*s = looseString(v)
	case data[0] == '{', data[0] == '[':
		*s = ""
	default:
		*s = looseString(data)
	}
	return nil
}

func (s *looseString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = looseString(node.Value)
	return nil
}

// looseBool decodes true, "true", "J", 1 and the other ParseFlag spellings
// as true. Every other value is false.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			*b = false
			return nil
		}
		*b = looseBool(ParseFlag(v))
		return nil
	}
	*b = looseBool(ParseFlag(string(data)))
	return nil
}

func (b *looseBool) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		*b = false
		return nil
	}
	*b = looseBool(ParseFlag(node.Value))
	return nil
}

// =============================================================================
// WIRE FORMS
// =============================================================================

// invoiceWire mirrors Invoice with loosely-typed text fields.
type invoiceWire struct {
	InvoiceNumber   looseString `json:"invoiceNumber" yaml:"invoiceNumber"`
	InvoiceDate     looseString `json:"invoiceDate" yaml:"invoiceDate"`
	DueDate         looseString `json:"dueDate" yaml:"dueDate"`
	Sender          looseString `json:"sender" yaml:"sender"`
	DocumentNumber  looseString `json:"documentNumber" yaml:"documentNumber"`
	PaymentMethod   looseString `json:"paymentMethod" yaml:"paymentMethod"`
	Notes           looseString `json:"notes" yaml:"notes"`
	CustomerNumber  looseString `json:"customerNumber" yaml:"customerNumber"`
	CustomerName    looseString `json:"customerName" yaml:"customerName"`
	CustomerAddress looseString `json:"customerAddress" yaml:"customerAddress"`
	Currency        looseString `json:"currency" yaml:"currency"`
	Reference       looseString `json:"reference" yaml:"reference"`
	VATNumber       looseString `json:"vatNumber" yaml:"vatNumber"`
	LineItems       []LineItem  `json:"lineItems" yaml:"lineItems"`
}

func (w invoiceWire) invoice() Invoice {
	return Invoice{
		InvoiceNumber:   string(w.InvoiceNumber),
		InvoiceDate:     string(w.InvoiceDate),
		DueDate:         string(w.DueDate),
		Sender:          string(w.Sender),
		DocumentNumber:  string(w.DocumentNumber),
		PaymentMethod:   string(w.PaymentMethod),
		Notes:           string(w.Notes),
		CustomerNumber:  string(w.CustomerNumber),
		CustomerName:    string(w.CustomerName),
		CustomerAddress: string(w.CustomerAddress),
		Currency:        string(w.Currency),
		Reference:       string(w.Reference),
		VATNumber:       string(w.VATNumber),
		LineItems:       w.LineItems,
	}
}

// lineItemWire mirrors LineItem with loosely-typed text and flag fields.
type lineItemWire struct {
	ID              looseString `json:"id" yaml:"id"`
	ProductNumber   looseString `json:"productNumber" yaml:"productNumber"`
	HSCode          looseString `json:"hsCode" yaml:"hsCode"`
	Description     looseString `json:"description" yaml:"description"`
	CountryOfOrigin looseString `json:"countryOfOrigin" yaml:"countryOfOrigin"`
	Quantity        Number      `json:"quantity" yaml:"quantity"`
	UnitPrice       Number      `json:"unitPrice" yaml:"unitPrice"`
	Amount          Number      `json:"amount" yaml:"amount"`
	Weight          Number      `json:"weight" yaml:"weight"`
	UnitCode        looseString `json:"unitCode" yaml:"unitCode"`
	CustomsCode     looseString `json:"customsCode" yaml:"customsCode"`
	Tariff          Number      `json:"tariff" yaml:"tariff"`
	DutyFree        looseBool   `json:"dutyFree" yaml:"dutyFree"`
	Taxable         looseBool   `json:"taxable" yaml:"taxable"`
}

func (w lineItemWire) lineItem() LineItem {
	return LineItem{
		ID:              string(w.ID),
		ProductNumber:   string(w.ProductNumber),
		HSCode:          string(w.HSCode),
		Description:     string(w.Description),
		CountryOfOrigin: string(w.CountryOfOrigin),
		Quantity:        w.Quantity,
		UnitPrice:       w.UnitPrice,
		Amount:          w.Amount,
		Weight:          w.Weight,
		UnitCode:        string(w.UnitCode),
		CustomsCode:     string(w.CustomsCode),
		Tariff:          w.Tariff,
		DutyFree:        bool(w.DutyFree),
		Taxable:         bool(w.Taxable),
	}
}

// UnmarshalJSON decodes a line item. Mistyped fields fall back to their
// zero value; only a line item that is not an object is an error.
func (item *LineItem) UnmarshalJSON(data []byte) error {
	var w lineItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*item = w.lineItem()
	return nil
}

// UnmarshalYAML decodes a line item with the same rules as UnmarshalJSON.
func (item *LineItem) UnmarshalYAML(node *yaml.Node) error {
	var w lineItemWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*item = w.lineItem()
	return nil
}

// UnmarshalYAML decodes an invoice with the same field rules as
// UnmarshalJSON. The lineItems presence check is done by the reader.
func (inv *Invoice) UnmarshalYAML(node *yaml.Node) error {
	var w invoiceWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*inv = w.invoice()
	return nil
}
