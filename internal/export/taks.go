package export

import (
	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/ginjaninja78/invoice-export/internal/types"
)

// TAKSExporter writes TAKS customs records. Several invoices become one
// batch file.
type TAKSExporter struct {
	encoder *taks.Encoder
}

// NewTAKSExporter wraps an encoder.
func NewTAKSExporter(encoder *taks.Encoder) *TAKSExporter {
	return &TAKSExporter{encoder: encoder}
}

func (e *TAKSExporter) Name() string      { return "taks" }
func (e *TAKSExporter) MIMEType() string  { return "text/plain" }
func (e *TAKSExporter) Extension() string { return ".txt" }

// Export encodes the invoices as one TAKS batch.
func (e *TAKSExporter) Export(invoices []*types.Invoice) (*Result, error) {
	out, err := e.encoder.EncodeBatch(invoices)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:      out.Bytes(),
		Invoices:  len(invoices),
		LineItems: out.LineItems,
		Warnings:  out.Warnings,
	}, nil
}
