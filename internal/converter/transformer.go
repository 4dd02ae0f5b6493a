// =============================================================================
// Invoice Export - Transformation Engine
// =============================================================================
//
// This module rewrites invoice text fields according to the profile's
// transformation rules before the invoices are validated and exported.
//
// TRANSFORMATION TYPES:
//   - String manipulations (prepend, append, trim, case conversion)
//   - Code cleanup (strip_dots, extract_digits, remove_leading_zeros)
//   - Padding and fixed lengths
//   - Date layout conversion
//   - Lookup table replacements
//   - Fallbacks for empty fields
//
// TYPICAL RULES:
//   - Upper-case the country of origin
//   - Map internal product codes to customs codes with a lookup table
//   - Pad customer numbers to the length the customs broker expects
//
// Only text fields can be transformed; numeric fields keep their parsed
// values.
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/invoice-export/internal/config"
	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/ginjaninja78/invoice-export/internal/types"
)

// =============================================================================
// FIELD ACCESS
// =============================================================================

var invoiceFields = map[string]func(*types.Invoice) *string{
	"invoiceNumber":   func(inv *types.Invoice) *string { return &inv.InvoiceNumber },
	"invoiceDate":     func(inv *types.Invoice) *string { return &inv.InvoiceDate },
	"dueDate":         func(inv *types.Invoice) *string { return &inv.DueDate },
	"sender":          func(inv *types.Invoice) *string { return &inv.Sender },
	"documentNumber":  func(inv *types.Invoice) *string { return &inv.DocumentNumber },
	"paymentMethod":   func(inv *types.Invoice) *string { return &inv.PaymentMethod },
	"notes":           func(inv *types.Invoice) *string { return &inv.Notes },
	"customerNumber":  func(inv *types.Invoice) *string { return &inv.CustomerNumber },
	"customerName":    func(inv *types.Invoice) *string { return &inv.CustomerName },
	"customerAddress": func(inv *types.Invoice) *string { return &inv.CustomerAddress },
	"currency":        func(inv *types.Invoice) *string { return &inv.Currency },
	"reference":       func(inv *types.Invoice) *string { return &inv.Reference },
	"vatNumber":       func(inv *types.Invoice) *string { return &inv.VATNumber },
}

var lineItemFields = map[string]func(*types.LineItem) *string{
	"id":              func(item *types.LineItem) *string { return &item.ID },
	"productNumber":   func(item *types.LineItem) *string { return &item.ProductNumber },
	"hsCode":          func(item *types.LineItem) *string { return &item.HSCode },
	"description":     func(item *types.LineItem) *string { return &item.Description },
	"countryOfOrigin": func(item *types.LineItem) *string { return &item.CountryOfOrigin },
	"unitCode":        func(item *types.LineItem) *string { return &item.UnitCode },
	"customsCode":     func(item *types.LineItem) *string { return &item.CustomsCode },
}

// knownActions lists the supported transformation types.
var knownActions = map[string]bool{
	"prepend_string": true, "append_string": true,
	"trim": true, "uppercase": true, "lowercase": true,
	"replace": true, "regex_replace": true,
	"pad_zeros_to_length": true, "ensure_length": true, "remove_leading_zeros": true,
	"strip_dots": true, "extract_digits": true, "normalize_whitespace": true,
	"format_date": true,
	"lookup": true, "lookup_with_default": true,
	"if_empty_use_default": true, "if_empty_use_field": true,
}

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies a profile's transformation rules.
type Transformer struct {
	rules []config.TransformationRule

	// patterns holds the compiled regex_replace patterns by source.
	patterns map[string]*regexp.Regexp
}

// NewTransformer checks the rules and compiles their patterns.
//
// RETURNS:
//   - An error naming the first unknown field, unknown action or invalid
//     pattern.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{rules: rules, patterns: make(map[string]*regexp.Regexp)}

	for _, rule := range rules {
		if !isTransformableField(rule.Field) {
			return nil, fmt.Errorf("cannot transform field %q", rule.Field)
		}
		for _, action := range rule.Actions {
			if !knownActions[action.Type] {
				return nil, fmt.Errorf("field %q: unknown transformation type: %s", rule.Field, action.Type)
			}
			if action.Type == "if_empty_use_field" && !isTransformableField(action.Value) {
				return nil, fmt.Errorf("field %q: if_empty_use_field names unknown field %q", rule.Field, action.Value)
			}
			if action.Type == "regex_replace" && action.Find != "" {
				re, err := regexp.Compile(action.Find)
				if err != nil {
					return nil, fmt.Errorf("field %q: invalid regex pattern: %w", rule.Field, err)
				}
				t.patterns[action.Find] = re
			}
		}
	}

	return t, nil
}

func isTransformableField(name string) bool {
	_, inv := invoiceFields[name]
	_, item := lineItemFields[name]
	return inv || item
}

// Empty reports whether the transformer has no rules.
func (t *Transformer) Empty() bool {
	return t == nil || len(t.rules) == 0
}

// Apply transforms the invoices in place. Invoice fields are rewritten once
// per invoice, line item fields once per item.
func (t *Transformer) Apply(invoices []*types.Invoice) error {
	if t.Empty() {
		return nil
	}

	for _, inv := range invoices {
		if inv == nil {
			continue
		}
		if err := t.TransformInvoice(inv); err != nil {
			return fmt.Errorf("invoice %q: %w", inv.InvoiceNumber, err)
		}
	}
	return nil
}

// TransformInvoice applies the rules to one invoice and its line items.
func (t *Transformer) TransformInvoice(inv *types.Invoice) error {
	for _, rule := range t.rules {
		field, ok := invoiceFields[rule.Field]
		if !ok {
			continue
		}
		lookup := func(name string) string { return fieldValue(inv, nil, name) }
		if err := t.transformField(field(inv), rule, lookup); err != nil {
			return err
		}
	}

	for i := range inv.LineItems {
		if err := t.TransformLineItem(inv, &inv.LineItems[i]); err != nil {
			return fmt.Errorf("line item %d: %w", i+1, err)
		}
	}
	return nil
}

// TransformLineItem applies the line item rules to one item. Fallback fields
// resolve against the item first, then the invoice.
func (t *Transformer) TransformLineItem(inv *types.Invoice, item *types.LineItem) error {
	for _, rule := range t.rules {
		field, ok := lineItemFields[rule.Field]
		if !ok {
			continue
		}
		lookup := func(name string) string { return fieldValue(inv, item, name) }
		if err := t.transformField(field(item), rule, lookup); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transformer) transformField(target *string, rule config.TransformationRule, lookup func(string) string) error {
	value := *target
	for _, action := range rule.Actions {
		var err error
		value, err = ApplyTransformation(value, action, t.patterns[action.Find], lookup)
		if err != nil {
			return fmt.Errorf("transformation '%s' on %s failed: %w", action.Type, rule.Field, err)
		}
	}
	*target = value
	return nil
}

func fieldValue(inv *types.Invoice, item *types.LineItem, name string) string {
	if item != nil {
		if field, ok := lineItemFields[name]; ok {
			return *field(item)
		}
	}
	if field, ok := invoiceFields[name]; ok && inv != nil {
		return *field(inv)
	}
	return ""
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

// ApplyTransformation applies a single transformation action.
//
// PARAMETERS:
//   - value: The current value.
//   - action: The transformation to apply.
//   - pattern: The compiled Find pattern of a regex_replace, or nil.
//   - lookup: Resolves other field values for if_empty_use_field.
//
// RETURNS:
//   - The transformed value.
//   - An error if the transformation fails.
func ApplyTransformation(value string, action config.TransformationAction, pattern *regexp.Regexp, lookup func(string) string) (string, error) {
	switch action.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "normalize_whitespace":
		return strings.Join(strings.Fields(value), " "), nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		if action.Find == "" {
			return value, nil
		}
		if pattern == nil {
			var err error
			if pattern, err = regexp.Compile(action.Find); err != nil {
				return "", fmt.Errorf("invalid regex pattern: %w", err)
			}
		}
		return pattern.ReplaceAllString(value, action.Value), nil

	// =========================================================================
	// CODES AND LENGTHS
	// =========================================================================

	case "strip_dots":
		// 6117.80.80 -> 61178080
		return taks.StripDots(value), nil

	case "extract_digits":
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, value), nil

	case "remove_leading_zeros":
		result := strings.TrimLeft(value, "0")
		if result == "" && value != "" {
			return "0", nil
		}
		return result, nil

	case "pad_zeros_to_length":
		targetLength, err := strconv.Atoi(action.Value)
		if err != nil || targetLength <= 0 {
			return value, nil
		}
		return padLeft(value, targetLength, '0'), nil

	case "ensure_length":
		// Truncate from the right or zero-pad on the left.
		targetLength, err := strconv.Atoi(action.Value)
		if err != nil || targetLength <= 0 {
			return value, nil
		}
		runes := []rune(value)
		if len(runes) > targetLength {
			return string(runes[:targetLength]), nil
		}
		return padLeft(value, targetLength, '0'), nil

	// =========================================================================
	// DATES
	// =========================================================================

	case "format_date":
		// Value is "input_layout|output_layout", e.g. "02.01.2006|2006-01-02".
		layouts := strings.Split(action.Value, "|")
		if len(layouts) != 2 || strings.TrimSpace(value) == "" {
			return value, nil
		}
		parsed, err := time.Parse(strings.TrimSpace(layouts[0]), strings.TrimSpace(value))
		if err != nil {
			return value, nil
		}
		return parsed.Format(strings.TrimSpace(layouts[1])), nil

	// =========================================================================
	// LOOKUPS AND FALLBACKS
	// =========================================================================

	case "lookup":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return value, nil

	case "lookup_with_default":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return action.Value, nil

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	case "if_empty_use_field":
		if strings.TrimSpace(value) == "" && lookup != nil {
			return lookup(action.Value), nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// padLeft pads s with padChar on the left to length runes.
func padLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
