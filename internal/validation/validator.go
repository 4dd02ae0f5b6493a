// =============================================================================
// Invoice Export - Validation Engine
// =============================================================================
//
// This module checks invoices before they are exported. The checks mirror
// the rules the review screens apply while a user edits an invoice:
//   - HS codes in the dotted NNNN.NN.NN form
//   - Two-letter country of origin codes
//   - YYYY-MM-DD invoice and due dates
//   - Amounts and unit prices with at most two decimals (credits may be negative)
//   - Non-negative quantities and weights
//
// ERROR HANDLING:
//   - Issues are collected, never thrown.
//   - By default every issue is a warning; the encoders substitute defaults
//     for unusable fields and the export goes ahead.
//   - A strict profile turns warnings into errors and the file is rejected.
//
// =============================================================================

package validation

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ginjaninja78/invoice-export/internal/types"
	"github.com/shopspring/decimal"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Severity is "error" (export is rejected) or "warning".
	Severity string `json:"severity"`

	// Field is the JSON name of the offending field.
	Field string `json:"field"`

	// Value is the offending value as text.
	Value string `json:"value"`

	// Rule names the violated rule.
	Rule string `json:"rule"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// InvoiceNumber identifies the invoice.
	InvoiceNumber string `json:"invoiceNumber"`

	// LineItem is the 1-based line number, or 0 for header fields.
	LineItem int `json:"lineItem,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	location := fmt.Sprintf("Invoice %q", e.InvoiceNumber)
	if e.LineItem > 0 {
		location = fmt.Sprintf("%s, LineItem %d", location, e.LineItem)
	}
	return fmt.Sprintf("[%s] %s, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		location,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains all issues, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// InvoicesValidated is the number of invoices checked.
	InvoicesValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// Strict reports every issue as an error.
	Strict bool

	// RequireCountryOfOrigin flags line items without a country.
	// Default: true
	RequireCountryOfOrigin bool

	// RequireHSCode flags line items without an HS code.
	// Default: true
	RequireHSCode bool
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		Strict:                 false,
		RequireCountryOfOrigin: true,
		RequireHSCode:          true,
	}
}

// Validator checks invoices against the export rules.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return NewValidatorWithOptions(DefaultValidationOptions())
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTIONS
// =============================================================================

// Validate checks the invoices with default options and returns all issues.
func Validate(invoices []*types.Invoice) []*ValidationError {
	return NewValidator().ValidateAll(invoices).Errors
}

// ValidateAll checks all invoices and returns a detailed result.
func (v *Validator) ValidateAll(invoices []*types.Invoice) *ValidationResult {
	result := &ValidationResult{
		IsValid:           true,
		Errors:            make([]*ValidationError, 0),
		InvoicesValidated: len(invoices),
	}

	for _, inv := range invoices {
		if inv == nil {
			continue
		}
		for _, err := range v.ValidateInvoice(inv) {
			result.Errors = append(result.Errors, err)
			if err.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false
			} else {
				result.WarningCount++
			}
		}
	}

	return result
}

// ValidateInvoice checks the header and every line item of one invoice.
func (v *Validator) ValidateInvoice(inv *types.Invoice) []*ValidationError {
	var errs []*ValidationError
	add := func(field, value, rule, message string, line int) {
		errs = append(errs, v.newError(inv.InvoiceNumber, line, field, value, rule, message))
	}

	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		add("invoiceNumber", "", "required", "Invoice number is empty", 0)
	}
	if inv.InvoiceDate != "" && !IsValidDate(inv.InvoiceDate) {
		add("invoiceDate", inv.InvoiceDate, "date", "Enter a valid date in YYYY-MM-DD format", 0)
	}
	if inv.DueDate != "" && !IsValidDate(inv.DueDate) {
		add("dueDate", inv.DueDate, "date", "Enter a valid date in YYYY-MM-DD format", 0)
	}
	if inv.Currency != "" && !IsValidCurrency(inv.Currency) {
		add("currency", inv.Currency, "currency", "Enter a 3-letter currency code (e.g., EUR, DKK)", 0)
	}

	for i := range inv.LineItems {
		errs = append(errs, v.ValidateLineItem(inv, i+1, &inv.LineItems[i])...)
	}

	return errs
}

// ValidateLineItem checks one line item. line is its 1-based position.
func (v *Validator) ValidateLineItem(inv *types.Invoice, line int, item *types.LineItem) []*ValidationError {
	var errs []*ValidationError
	add := func(field, value, rule, message string) {
		errs = append(errs, v.newError(inv.InvoiceNumber, line, field, value, rule, message))
	}

	// HS CODE
	switch {
	case item.HSCode == "":
		if v.options.RequireHSCode {
			add("hsCode", "", "required", "HS code is missing")
		}
	case !IsValidHSCode(item.HSCode):
		add("hsCode", item.HSCode, "hs_code", "Enter a valid HS code (e.g., 6117.80.80)")
	}

	// COUNTRY OF ORIGIN
	switch {
	case item.CountryOfOrigin == "":
		if v.options.RequireCountryOfOrigin {
			add("countryOfOrigin", "", "required", "Country of origin is missing")
		}
	case !IsValidCountryCode(item.CountryOfOrigin):
		add("countryOfOrigin", item.CountryOfOrigin, "country_code", "Enter a valid 2-letter country code (e.g., US, CN, UK)")
	}

	// MONEY: at most two decimals
	for _, f := range []struct {
		name  string
		value types.Number
	}{
		{"unitPrice", item.UnitPrice},
		{"amount", item.Amount},
	} {
		n, ok := f.value.Float()
		switch {
		case !ok:
			add(f.name, f.value.String(), "required", "Enter a valid number")
		case !IsValidAmount(n):
			add(f.name, f.value.String(), "amount", "Enter a valid number with up to 2 decimal places")
		}
	}

	// QUANTITIES
	for _, f := range []struct {
		name  string
		value types.Number
	}{
		{"quantity", item.Quantity},
		{"weight", item.Weight},
	} {
		n, ok := f.value.Float()
		switch {
		case !ok:
			add(f.name, "", "required", "Value is missing; the export default will be used")
		case n < 0:
			add(f.name, f.value.String(), "non_negative", "Value must not be negative")
		}
	}

	return errs
}

func (v *Validator) newError(invoiceNumber string, line int, field, value, rule, message string) *ValidationError {
	severity := SeverityWarning
	if v.options.Strict {
		severity = SeverityError
	}
	return &ValidationError{
		Severity:      severity,
		Field:         field,
		Value:         value,
		Rule:          rule,
		Message:       message,
		InvoiceNumber: invoiceNumber,
		LineItem:      line,
	}
}

// =============================================================================
// FIELD RULES
// =============================================================================

var (
	hsCodePattern   = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// countryCodes is the list of origin countries the review screens accept.
var countryCodes = map[string]bool{
	"CN": true, "US": true, "GB": true, "DE": true, "FR": true, "IT": true, "ES": true, "JP": true, "KR": true, "IN": true,
	"BR": true, "CA": true, "AU": true, "NZ": true, "ZA": true, "RU": true, "MX": true, "AR": true, "DK": true, "SE": true,
	"NO": true, "FI": true, "IS": true, "CH": true, "AT": true, "PL": true, "NL": true, "BE": true, "LU": true, "PT": true,
	"GR": true, "TH": true, "VN": true, "ID": true, "MY": true, "SG": true, "PH": true, "SA": true, "AE": true, "EG": true,
}

// IsValidCountryCode reports whether code is a known 2-letter country code.
func IsValidCountryCode(code string) bool {
	return countryCodes[strings.ToUpper(strings.TrimSpace(code))]
}

// IsValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// IsValidAmount reports whether n has at most two decimal places.
func IsValidAmount(n float64) bool {
	return decimal.NewFromFloat(n).Exponent() >= -2
}

// IsValidHSCode reports whether code has the dotted NNNN.NN.NN form.
func IsValidHSCode(code string) bool {
	return hsCodePattern.MatchString(code)
}

// IsValidCurrency reports whether code looks like an ISO 4217 code.
func IsValidCurrency(code string) bool {
	return currencyPattern.MatchString(strings.TrimSpace(code))
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d issue(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	content := fmt.Sprintf("Validation report generated %s\n\n%s",
		time.Now().Format(time.RFC3339), FormatErrors(errors))

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}
