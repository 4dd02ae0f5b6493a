package taks

import (
	"fmt"

	"github.com/ginjaninja78/invoice-export/internal/types"
)

// ErrMalformedInput matches every MalformedInputError via errors.Is.
var ErrMalformedInput = types.ErrMalformedInput

// MalformedInputError is the only fatal encoder error: the input cannot be
// walked at all (nil invoice, missing line items, empty batch).
type MalformedInputError struct {
	// Invoice is the zero-based position in the batch, or -1 for the batch
	// itself.
	Invoice int

	Reason string
}

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	if e.Invoice < 0 {
		return fmt.Sprintf("malformed input: %s", e.Reason)
	}
	return fmt.Sprintf("malformed input: invoice %d: %s", e.Invoice+1, e.Reason)
}

// Unwrap lets errors.Is(err, ErrMalformedInput) succeed.
func (e *MalformedInputError) Unwrap() error {
	return types.ErrMalformedInput
}

// FieldWarning records a line-item field that was missing or unusable and
// was replaced by a default. Warnings never stop encoding.
type FieldWarning struct {
	// Line is the record sequence number of the affected line item. Zero
	// means a header field.
	Line int

	InvoiceNumber string
	Field         string
	Default       string
}

// String renders the warning for logs and error reports.
func (w FieldWarning) String() string {
	if w.Line == 0 {
		return fmt.Sprintf("invoice %q: %s unusable, wrote %q", w.InvoiceNumber, w.Field, w.Default)
	}
	return fmt.Sprintf("invoice %q line %d: %s missing, defaulted to %q", w.InvoiceNumber, w.Line, w.Field, w.Default)
}
