// =============================================================================
// Invoice Export - TAKS Encoder
// =============================================================================
//
// This module turns invoice records into the TAKS flat-file format read by
// the customs clearance system.
//
// FILE LAYOUT:
//   1;TOLL;00;<ts>;<invoiceNumber>                                   batch header
//   1;TOLL;10;<ts>;1;<invoiceNumber>;FAS;524;0,0000;17,000           batch summary
//   n;TOLL;20;<ts>;1;<customerNumber>                                per line item
//   n;TOLL;40;<ts>;1;<invNo>;<date>;<ref>;<sender>;;<currency>;      per line item
//   n;TOLL;50;<ts>;1;;<hs>;<qty>;<weight>;<customs>;<tariff>;<amt>;N per line item
//   1;TOLL;99;<ts>;<totalAmount>                                     batch footer
//
// ERROR POLICY:
//   - Missing or unusable line-item fields are replaced by defaults and
//     reported as FieldWarning. Encoding continues.
//   - Only a structurally unusable input (nil invoice, missing line items)
//     is an error.
//
// CONCURRENCY:
//   An Encoder holds no mutable state and may be shared between goroutines.
//
// =============================================================================

package taks

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/invoice-export/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// OUTPUT
// =============================================================================

// Output is the result of one encoding run.
type Output struct {
	// Records holds one TAKS record per element, in file order.
	Records []string

	// Timestamp is the value shared by every record of this run.
	Timestamp string

	// Total is the exact sum of all line amounts.
	Total decimal.Decimal

	// LineItems is the number of encoded line items.
	LineItems int

	// Warnings lists every defaulted field.
	Warnings []FieldWarning
}

// String joins the records with newlines.
func (o *Output) String() string {
	return strings.Join(o.Records, RecordSeparator)
}

// Bytes returns String as a byte slice.
func (o *Output) Bytes() []byte {
	return []byte(o.String())
}

// =============================================================================
// ENCODER
// =============================================================================

// Encoder assembles TAKS records.
type Encoder struct {
	opts   Options
	seq    *Sequencer
	logger *slog.Logger
}

// NewEncoder creates an Encoder. A nil sequencer uses the wall clock and a
// nil logger uses slog.Default().
func NewEncoder(opts Options, seq *Sequencer, logger *slog.Logger) *Encoder {
	if seq == nil {
		seq = NewSequencer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{
		opts:   opts.WithDefaults(),
		seq:    seq,
		logger: logger,
	}
}

// Options returns the effective options, defaults included.
func (e *Encoder) Options() Options {
	return e.opts
}

// Encode encodes one invoice using a fresh timestamp.
func (e *Encoder) Encode(inv *types.Invoice) (*Output, error) {
	return e.EncodeAt(inv, e.seq.Timestamp())
}

// EncodeAt encodes one invoice with the given timestamp. The output is a
// pure function of its arguments.
func (e *Encoder) EncodeAt(inv *types.Invoice, timestamp string) (*Output, error) {
	return e.EncodeBatchAt([]*types.Invoice{inv}, timestamp)
}

// EncodeBatch encodes several invoices of one shipment into a single file
// using a fresh timestamp.
func (e *Encoder) EncodeBatch(invoices []*types.Invoice) (*Output, error) {
	return e.EncodeBatchAt(invoices, e.seq.Timestamp())
}

// EncodeBatchAt encodes several invoices into one file.
//
// The batch header, summary and footer are written once. Header and summary
// carry the first invoice's number; the footer carries the grand total.
// Line sequence numbers continue across invoices, so a batch of one is
// byte-identical to EncodeAt.
func (e *Encoder) EncodeBatchAt(invoices []*types.Invoice, timestamp string) (*Output, error) {
	if err := checkBatch(invoices); err != nil {
		return nil, err
	}

	itemCount := 0
	for _, inv := range invoices {
		itemCount += len(inv.LineItems)
	}

	out := &Output{
		Records:   make([]string, 0, 3+3*itemCount),
		Timestamp: timestamp,
		Total:     decimal.Zero,
		LineItems: itemCount,
	}

	first := sanitizeText(invoices[0].InvoiceNumber)
	out.Records = append(out.Records,
		record(1, RecordBatchHeader, timestamp, first),
		record(1, RecordBatchSummary, timestamp, append([]string{"1", first}, e.opts.BatchSummary...)...),
	)

	index := 0
	for _, inv := range invoices {
		header := e.invoiceHeader(inv, out)

		for i := range inv.LineItems {
			seq := e.seq.LineSequence(index)
			index++

			line := e.lineFields(inv, &inv.LineItems[i], seq, out)

			out.Records = append(out.Records,
				record(seq, RecordCustomerRef, timestamp, "1", header.customerNumber),
				record(seq, RecordInvoiceInfo, timestamp,
					"1", header.invoiceNumber, header.date, header.reference, header.sender, "", header.currency, ""),
				record(seq, RecordLineItem, timestamp,
					"1", "", line.hsCode, line.quantityOrDescription, line.netWeight,
					line.customsCode, line.tariff, line.amount, line.dutyFree),
			)
		}
	}

	out.Records = append(out.Records,
		record(1, RecordBatchFooter, timestamp, FormatAmount(out.Total, AmountPrecision)),
	)

	return out, nil
}

// checkBatch enforces the structural preconditions.
func checkBatch(invoices []*types.Invoice) error {
	if len(invoices) == 0 {
		return &MalformedInputError{Invoice: -1, Reason: "no invoices to encode"}
	}
	for i, inv := range invoices {
		if inv == nil {
			return &MalformedInputError{Invoice: i, Reason: "invoice is nil"}
		}
		if inv.LineItems == nil {
			return &MalformedInputError{Invoice: i, Reason: "lineItems is missing"}
		}
	}
	return nil
}

// record joins the leading sequence, carrier, type and timestamp with the
// record-specific fields.
func record(seq int, recordType, timestamp string, fields ...string) string {
	parts := make([]string, 0, 4+len(fields))
	parts = append(parts, strconv.Itoa(seq), Carrier, recordType, timestamp)
	parts = append(parts, fields...)
	return strings.Join(parts, FieldSeparator)
}

// =============================================================================
// FIELD NORMALIZATION
// =============================================================================

// headerFields are the invoice-level values echoed by records 20 and 40.
type headerFields struct {
	invoiceNumber  string
	customerNumber string
	date           string
	reference      string
	sender         string
	currency       string
}

func (e *Encoder) invoiceHeader(inv *types.Invoice, out *Output) headerFields {
	date, ok := NormalizeDate(inv.InvoiceDate)
	if !ok {
		e.warn(out, FieldWarning{InvoiceNumber: inv.InvoiceNumber, Field: "invoiceDate", Default: date})
	}

	return headerFields{
		invoiceNumber:  sanitizeText(inv.InvoiceNumber),
		customerNumber: sanitizeText(inv.CustomerNumber),
		date:           sanitizeText(date),
		reference:      sanitizeText(inv.Reference),
		sender:         sanitizeText(inv.SenderName()),
		currency:       sanitizeText(strings.ToUpper(strings.TrimSpace(inv.Currency))),
	}
}

// lineFieldValues are the formatted fields of record 50.
type lineFieldValues struct {
	hsCode                string
	quantityOrDescription string
	netWeight             string
	customsCode           string
	tariff                string
	amount                string
	dutyFree              string
}

func (e *Encoder) lineFields(inv *types.Invoice, item *types.LineItem, seq int, out *Output) lineFieldValues {
	var v lineFieldValues
	defaulted := func(field, value string) {
		e.warn(out, FieldWarning{Line: seq, InvoiceNumber: inv.InvoiceNumber, Field: field, Default: value})
	}

	v.hsCode = sanitizeText(StripDots(strings.TrimSpace(item.HSCode)))
	if v.hsCode == "" {
		v.hsCode = e.opts.DefaultHSCode
		defaulted("hsCode", v.hsCode)
	}

	if e.opts.DescriptionWidth > 0 {
		v.quantityOrDescription = PadLeft(sanitizeText(item.Description), e.opts.DescriptionWidth)
	} else {
		quantity, ok := item.Quantity.Float()
		if !ok {
			quantity = 0
			defaulted("quantity", FormatDecimal(0, QuantityPrecision))
		}
		v.quantityOrDescription = FormatDecimal(quantity, QuantityPrecision)
	}

	if weight, ok := item.Weight.Float(); ok {
		v.netWeight = FormatDecimal(weight, WeightPrecision)
	} else {
		v.netWeight = e.opts.DefaultNetWeight
		defaulted("weight", v.netWeight)
	}

	v.customsCode = sanitizeText(strings.TrimSpace(item.CustomsCode))
	if v.customsCode == "" {
		v.customsCode = e.opts.DefaultCustomsCode
		defaulted("customsCode", v.customsCode)
	}

	if tariff, ok := item.Tariff.Float(); ok {
		v.tariff = FormatPlain(tariff)
	} else {
		v.tariff = e.opts.DefaultTariff
		defaulted("tariff", v.tariff)
	}

	amount, ok := item.Amount.Float()
	if !ok {
		amount = 0
		defaulted("amount", FormatDecimal(0, AmountPrecision))
	}
	exact := decimal.NewFromFloat(amount)
	out.Total = out.Total.Add(exact)
	v.amount = FormatAmount(exact, AmountPrecision)

	v.dutyFree = DutyFreeNo
	if item.DutyFree {
		v.dutyFree = DutyFreeYes
	}

	return v
}

func (e *Encoder) warn(out *Output, w FieldWarning) {
	out.Warnings = append(out.Warnings, w)
	e.logger.Warn("defaulted TAKS field",
		"invoice", w.InvoiceNumber,
		"line", w.Line,
		"field", w.Field,
		"default", w.Default,
	)
}

// =============================================================================
// DATES
// =============================================================================

// dateLayouts are the invoice date spellings accepted at the boundary.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2006/01/02",
}

// NormalizeDate converts an invoice date to ISO YYYY-MM-DD. Unrecognized
// values are returned trimmed with ok=false. An empty date is valid and
// stays empty.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return s, false
}
