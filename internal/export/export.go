// =============================================================================
// Invoice Export - Exporters
// =============================================================================
//
// This module turns invoices into downloadable files. Every format is an
// Exporter; callers choose one by name with New.
//
// FORMATS:
//   | Name         | Extension | MIME type        | Content                      |
//   |--------------|-----------|------------------|------------------------------|
//   | taks         | .txt      | text/plain       | TAKS customs records         |
//   | json         | .json     | application/json | the invoice, indented        |
//   | customs-json | .json     | application/json | TAKS-ready invoice JSON      |
//   | xml          | .xml      | application/xml  | <Invoice><Details>...        |
//   | csv          | .csv      | text/csv         | one row per line item        |
//
// Several invoices exported together produce one file: a TAKS batch, a JSON
// array, an <Invoices> document or a CSV with all rows.
//
// =============================================================================

package export

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ginjaninja78/invoice-export/internal/config"
	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/ginjaninja78/invoice-export/internal/types"
)

// =============================================================================
// EXPORTER INTERFACE
// =============================================================================

// Exporter encodes invoices in one file format.
type Exporter interface {
	// Name is the format name used in profiles and URLs.
	Name() string

	// MIMEType is the Content-Type of the produced file.
	MIMEType() string

	// Extension is the file extension including the dot.
	Extension() string

	// Export encodes the invoices into a single file.
	Export(invoices []*types.Invoice) (*Result, error)
}

// Result is one exported file.
type Result struct {
	// Data is the file content.
	Data []byte

	// Invoices and LineItems count what was exported.
	Invoices  int
	LineItems int

	// Warnings lists fields the TAKS encoder replaced with defaults.
	Warnings []taks.FieldWarning
}

// =============================================================================
// REGISTRY
// =============================================================================

// Options configures the exporters created by New.
type Options struct {
	// TAKS is passed to the TAKS encoder.
	TAKS taks.Options

	// Sequencer supplies TAKS timestamps. Nil uses the wall clock.
	Sequencer *taks.Sequencer

	// Logger receives encoder warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// New returns the exporter for format.
func New(format string, opts Options) (Exporter, error) {
	switch format {
	case config.FormatTAKS:
		return NewTAKSExporter(taks.NewEncoder(opts.TAKS, opts.Sequencer, opts.Logger)), nil
	case config.FormatJSON:
		return &JSONExporter{}, nil
	case config.FormatCustomsJSON:
		return &JSONExporter{Customs: true}, nil
	case config.FormatXML:
		return &XMLExporter{Indent: "  "}, nil
	case config.FormatCSV:
		return &CSVExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// Formats lists the supported format names in sorted order.
func Formats() []string {
	formats := []string{
		config.FormatTAKS,
		config.FormatJSON,
		config.FormatCustomsJSON,
		config.FormatXML,
		config.FormatCSV,
	}
	sort.Strings(formats)
	return formats
}

// checkInvoices enforces the preconditions shared by every exporter.
func checkInvoices(invoices []*types.Invoice) (lineItems int, err error) {
	if len(invoices) == 0 {
		return 0, fmt.Errorf("%w: no invoices to export", types.ErrMalformedInput)
	}
	for i, inv := range invoices {
		if inv == nil {
			return 0, fmt.Errorf("%w: invoice %d is nil", types.ErrMalformedInput, i)
		}
		if inv.LineItems == nil {
			return 0, fmt.Errorf("%w: invoice %d has no lineItems", types.ErrMalformedInput, i)
		}
		lineItems += len(inv.LineItems)
	}
	return lineItems, nil
}
