package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNumberUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValue float64
		wantValid bool
	}{
		{"integer", `5`, 5, true},
		{"decimal", `2.5`, 2.5, true},
		{"string dot", `"1.020"`, 1.02, true},
		{"string comma", `"1,020"`, 1.02, true},
		{"german grouping", `"1.234,56"`, 1234.56, true},
		{"padded string", `" 42 "`, 42, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"text", `"abc"`, 0, false},
		{"nan string", `"NaN"`, 0, false},
		{"infinity string", `"Inf"`, 0, false},
		{"object", `{}`, 0, false},
		{"bool", `true`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			if err := json.Unmarshal([]byte(tt.input), &n); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.input, err)
			}
			got, valid := n.Float()
			if valid != tt.wantValid {
				t.Fatalf("Unmarshal(%s) valid = %v, want %v", tt.input, valid, tt.wantValid)
			}
			if valid && math.Abs(got-tt.wantValue) > 1e-9 {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, got, tt.wantValue)
			}
		})
	}
}

func TestParseNumberSeparators(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		// A lone comma is a decimal comma, never a thousands separator.
		{"1,234", 1.234},
		{"1.234", 1.234},
		{"1.234,56", 1234.56},
		{"12.345.678,9", 12345678.9},
		{"1,020", 1.02},
		{"2.50", 2.5},
		{"-0,5", -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, valid := ParseNumber(tt.input).Float()
			if !valid {
				t.Fatalf("ParseNumber(%q) is invalid", tt.input)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNumberUnmarshalYAML(t *testing.T) {
	var item struct {
		Quantity Number `yaml:"quantity"`
		Weight   Number `yaml:"weight"`
		Tariff   Number `yaml:"tariff"`
	}
	doc := "quantity: 12.5\nweight: \"0,600\"\ntariff: ~\n"
	if err := yaml.Unmarshal([]byte(doc), &item); err != nil {
		t.Fatalf("yaml.Unmarshal error = %v", err)
	}

	if v, ok := item.Quantity.Float(); !ok || v != 12.5 {
		t.Errorf("quantity = %v/%v, want 12.5/true", v, ok)
	}
	if v, ok := item.Weight.Float(); !ok || v != 0.6 {
		t.Errorf("weight = %v/%v, want 0.6/true", v, ok)
	}
	if item.Tariff.Valid() {
		t.Errorf("tariff should be invalid for null")
	}
}

func TestNewNumberRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if NewNumber(f).Valid() {
			t.Errorf("NewNumber(%v) should be invalid", f)
		}
	}
}

func TestInvoiceUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantItems int
	}{
		{"with items", `{"invoiceNumber":"1","lineItems":[{"hsCode":"6117.80.80"}]}`, false, 1},
		{"empty items", `{"invoiceNumber":"1","lineItems":[]}`, false, 0},
		{"missing items", `{"invoiceNumber":"1"}`, true, 0},
		{"null items", `{"invoiceNumber":"1","lineItems":null}`, true, 0},
		{"object items", `{"invoiceNumber":"1","lineItems":{"a":1}}`, true, 0},
		{"string items", `{"invoiceNumber":"1","lineItems":"x"}`, true, 0},
		{"not an object", `[1,2]`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inv Invoice
			err := json.Unmarshal([]byte(tt.input), &inv)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedInput) {
					t.Fatalf("error = %v, want ErrMalformedInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error = %v", err)
			}
			if inv.LineItems == nil {
				t.Fatalf("LineItems should be non-nil after decoding")
			}
			if len(inv.LineItems) != tt.wantItems {
				t.Errorf("len(LineItems) = %d, want %d", len(inv.LineItems), tt.wantItems)
			}
		})
	}
}

func TestInvoiceUnmarshalJSONKeepsLooseNumbers(t *testing.T) {
	input := `{"lineItems":[{"quantity":"1000","amount":"2500","weight":"1.020","tariff":"oops"}]}`

	var inv Invoice
	if err := json.Unmarshal([]byte(input), &inv); err != nil {
		t.Fatalf("unexpected error = %v", err)
	}

	item := inv.LineItems[0]
	if v, _ := item.Quantity.Float(); v != 1000 {
		t.Errorf("quantity = %v, want 1000", v)
	}
	if v, _ := item.Weight.Float(); v != 1.02 {
		t.Errorf("weight = %v, want 1.02", v)
	}
	if item.Tariff.Valid() {
		t.Errorf("tariff should be invalid")
	}
}

func TestSenderName(t *testing.T) {
	inv := Invoice{CustomerName: "Kunde A/S"}
	if got := inv.SenderName(); got != "Kunde A/S" {
		t.Errorf("SenderName() = %q, want customer fallback", got)
	}
	inv.Sender = "Acme Corporation"
	if got := inv.SenderName(); got != "Acme Corporation" {
		t.Errorf("SenderName() = %q, want sender", got)
	}
}
