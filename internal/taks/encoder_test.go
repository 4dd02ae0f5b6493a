package taks

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ginjaninja78/invoice-export/internal/types"
)

const testTimestamp = "2025-02-20-20.33.15.486"

func newTestEncoder(opts Options) *Encoder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time {
		return time.Date(2025, 2, 20, 20, 33, 15, 486_000_000, time.Local)
	}
	return NewEncoder(opts, NewSequencer(clock), logger)
}

func num(f float64) types.Number {
	return types.NewNumber(f)
}

// sampleInvoice mirrors the two-item invoice used throughout the export
// screens.
func sampleInvoice() *types.Invoice {
	return &types.Invoice{
		InvoiceNumber:  "314188",
		InvoiceDate:    "2023-12-03",
		Sender:         "Acme Corporation",
		CustomerNumber: "C-1001",
		CustomerName:   "Nordisk Import A/S",
		Currency:       "eur",
		Reference:      "PO-77",
		LineItems: []types.LineItem{
			{
				HSCode:          "6117.80.80",
				Description:     "Buff, 230 gsm - size 25",
				CountryOfOrigin: "CN",
				Quantity:        num(1000),
				UnitPrice:       num(2.438738),
				Amount:          num(2438.738),
				Weight:          num(1.02),
				CustomsCode:     "20",
				Tariff:          num(720),
			},
			{
				HSCode:          "9999.99.99",
				Description:     "Opstart",
				CountryOfOrigin: "DK",
				Quantity:        num(1),
				UnitPrice:       num(150),
				Amount:          num(150),
				Weight:          num(0.6),
				CustomsCode:     "1",
				Tariff:          num(732),
				DutyFree:        true,
			},
		},
	}
}

func TestEncodeSampleInvoice(t *testing.T) {
	enc := newTestEncoder(Options{})

	out, err := enc.EncodeAt(sampleInvoice(), testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	want := []string{
		"1;TOLL;00;2025-02-20-20.33.15.486;314188",
		"1;TOLL;10;2025-02-20-20.33.15.486;1;314188;FAS;524;0,0000;17,000",
		"1;TOLL;20;2025-02-20-20.33.15.486;1;C-1001",
		"1;TOLL;40;2025-02-20-20.33.15.486;1;314188;2023-12-03;PO-77;Acme Corporation;;EUR;",
		"1;TOLL;50;2025-02-20-20.33.15.486;1;;61178080;1000,000;1,020;20;720;2438,74;N",
		"2;TOLL;20;2025-02-20-20.33.15.486;1;C-1001",
		"2;TOLL;40;2025-02-20-20.33.15.486;1;314188;2023-12-03;PO-77;Acme Corporation;;EUR;",
		"2;TOLL;50;2025-02-20-20.33.15.486;1;;99999999;1,000;0,600;1;732;150,00;J",
		"1;TOLL;99;2025-02-20-20.33.15.486;2588,74",
	}

	if got := out.String(); got != strings.Join(want, "\n") {
		t.Errorf("EncodeAt() output mismatch\ngot:\n%s\nwant:\n%s", got, strings.Join(want, "\n"))
	}
	if len(out.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", out.Warnings)
	}
	if out.LineItems != 2 {
		t.Errorf("LineItems = %d, want 2", out.LineItems)
	}
}

func TestEncodeEndToEndExample(t *testing.T) {
	inv := &types.Invoice{
		InvoiceNumber: "000000",
		LineItems: []types.LineItem{
			{
				HSCode:      "8302.41.00",
				Quantity:    num(0),
				Amount:      num(0),
				CustomsCode: "20",
				Tariff:      types.ParseNumber("720"),
			},
		},
	}

	out, err := newTestEncoder(Options{}).EncodeAt(inv, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	want := "1;TOLL;50;2025-02-20-20.33.15.486;1;;83024100;0,000;1,020;20;720;0,00;N"
	if got := out.Records[4]; got != want {
		t.Errorf("record 50 = %q, want %q", got, want)
	}

	if len(out.Warnings) != 1 || out.Warnings[0].Field != "weight" {
		t.Errorf("warnings = %v, want a single weight warning", out.Warnings)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	enc := newTestEncoder(Options{})

	first, err := enc.EncodeAt(sampleInvoice(), testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := enc.EncodeAt(sampleInvoice(), testTimestamp)
		if err != nil {
			t.Fatalf("EncodeAt() error = %v", err)
		}
		if again.String() != first.String() {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}

func TestEncodeRecordCountAndSequencing(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 250} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			inv := &types.Invoice{InvoiceNumber: "INV", LineItems: make([]types.LineItem, n)}
			for i := range inv.LineItems {
				inv.LineItems[i] = types.LineItem{HSCode: "6117.80.80", Amount: num(1)}
			}

			out, err := newTestEncoder(Options{}).EncodeAt(inv, testTimestamp)
			if err != nil {
				t.Fatalf("EncodeAt() error = %v", err)
			}

			if len(out.Records) != 2+3*n+1 {
				t.Fatalf("record count = %d, want %d", len(out.Records), 2+3*n+1)
			}

			for i := 0; i < n; i++ {
				wantSeq := strconv.Itoa(i + 1)
				for j, wantType := range []string{RecordCustomerRef, RecordInvoiceInfo, RecordLineItem} {
					fields := strings.Split(out.Records[2+3*i+j], ";")
					if fields[0] != wantSeq || fields[1] != Carrier || fields[2] != wantType {
						t.Errorf("item %d record %d = %q, want seq %s type %s", i, j, out.Records[2+3*i+j], wantSeq, wantType)
					}
				}
			}

			footer := out.Records[len(out.Records)-1]
			if !strings.HasPrefix(footer, "1;TOLL;99;") {
				t.Errorf("last record = %q, want batch footer", footer)
			}
		})
	}
}

func TestEncodeSharesTimestamp(t *testing.T) {
	out, err := newTestEncoder(Options{}).Encode(sampleInvoice())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if out.Timestamp != testTimestamp {
		t.Fatalf("Timestamp = %q, want %q", out.Timestamp, testTimestamp)
	}
	for _, rec := range out.Records {
		if strings.Split(rec, ";")[3] != testTimestamp {
			t.Errorf("record %q does not carry the shared timestamp", rec)
		}
	}
}

func TestEncodeTotalAvoidsFloatDrift(t *testing.T) {
	tests := []struct {
		name    string
		amounts []float64
		expect  string
	}{
		{"point one plus point two", []float64{0.1, 0.2}, "0,30"},
		{"many cents", []float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01}, "0,10"},
		{"half cents", []float64{1.005, 1.005}, "2,01"},
		{"rounded only at the end", []float64{0.004, 0.004}, "0,01"},
		{"no items", nil, "0,00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &types.Invoice{LineItems: []types.LineItem{}}
			for _, a := range tt.amounts {
				inv.LineItems = append(inv.LineItems, types.LineItem{Amount: num(a)})
			}

			out, err := newTestEncoder(Options{}).EncodeAt(inv, testTimestamp)
			if err != nil {
				t.Fatalf("EncodeAt() error = %v", err)
			}

			footer := strings.Split(out.Records[len(out.Records)-1], ";")
			if got := footer[len(footer)-1]; got != tt.expect {
				t.Errorf("total = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestEncodeDefaultSubstitution(t *testing.T) {
	inv := &types.Invoice{
		InvoiceNumber: "INV-1",
		LineItems: []types.LineItem{
			{}, // every field missing
		},
	}

	out, err := newTestEncoder(Options{}).EncodeAt(inv, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	want := "1;TOLL;50;2025-02-20-20.33.15.486;1;;83024100;0,000;1,020;20;720;0,00;N"
	if got := out.Records[4]; got != want {
		t.Errorf("record 50 = %q, want %q", got, want)
	}

	fields := map[string]bool{}
	for _, w := range out.Warnings {
		if w.Line != 1 {
			t.Errorf("warning %v has line %d, want 1", w, w.Line)
		}
		fields[w.Field] = true
	}
	for _, f := range []string{"hsCode", "quantity", "weight", "customsCode", "tariff", "amount"} {
		if !fields[f] {
			t.Errorf("missing warning for %s", f)
		}
	}
}

func TestEncodeInvalidNumbersFailSoft(t *testing.T) {
	inv := &types.Invoice{
		LineItems: []types.LineItem{
			{
				HSCode:   "6117.80.80",
				Quantity: types.ParseNumber("many"),
				Amount:   types.ParseNumber("NaN"),
				Weight:   types.ParseNumber("heavy"),
				Tariff:   types.ParseNumber(""),
			},
		},
	}

	out, err := newTestEncoder(Options{}).EncodeAt(inv, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	got := out.String()
	if strings.Contains(got, "NaN") || strings.Contains(got, "undefined") {
		t.Errorf("output leaks invalid values:\n%s", got)
	}
	if want := "1;;61178080;0,000;1,020;20;720;0,00;N"; !strings.HasSuffix(out.Records[4], want) {
		t.Errorf("record 50 = %q, want suffix %q", out.Records[4], want)
	}
}

func TestEncodeProfileOverrides(t *testing.T) {
	opts := Options{
		BatchSummary:       []string{"SEA", "600", "1,0000", "25,000"},
		DefaultHSCode:      "99999999",
		DefaultNetWeight:   "0,500",
		DefaultCustomsCode: "1",
		DefaultTariff:      "732",
	}
	inv := &types.Invoice{InvoiceNumber: "X", LineItems: []types.LineItem{{}}}

	out, err := newTestEncoder(opts).EncodeAt(inv, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	if want := "1;TOLL;10;2025-02-20-20.33.15.486;1;X;SEA;600;1,0000;25,000"; out.Records[1] != want {
		t.Errorf("record 10 = %q, want %q", out.Records[1], want)
	}
	if want := ";;99999999;0,000;0,500;1;732;0,00;N"; !strings.HasSuffix(out.Records[4], want) {
		t.Errorf("record 50 = %q, want suffix %q", out.Records[4], want)
	}
}

func TestEncodeDescriptionLayout(t *testing.T) {
	inv := &types.Invoice{
		LineItems: []types.LineItem{
			{HSCode: "6117.80.80", Description: "Buff", Quantity: num(3), Weight: num(1), Tariff: num(720), CustomsCode: "20", Amount: num(5)},
		},
	}

	out, err := newTestEncoder(Options{DescriptionWidth: 10}).EncodeAt(inv, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	fields := strings.Split(out.Records[4], ";")
	if fields[7] != "      Buff" {
		t.Errorf("field 8 = %q, want padded description", fields[7])
	}
}

func TestEncodeHeaderFields(t *testing.T) {
	inv := &types.Invoice{
		InvoiceNumber: "INV;42",
		InvoiceDate:   "03.12.2023",
		CustomerName:  "Kunde A/S",
		Currency:      " dkk ",
		LineItems:     []types.LineItem{{HSCode: "1", Amount: num(1), Weight: num(1), Tariff: num(1), CustomsCode: "1"}},
	}

	out, err := newTestEncoder(Options{}).EncodeAt(inv, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	want := "1;TOLL;40;2025-02-20-20.33.15.486;1;INV 42;2023-12-03;;Kunde A/S;;DKK;"
	if out.Records[3] != want {
		t.Errorf("record 40 = %q, want %q", out.Records[3], want)
	}
}

func TestEncodeUnparseableDateIsKept(t *testing.T) {
	inv := &types.Invoice{InvoiceDate: "soon", LineItems: []types.LineItem{{}}}

	out, err := newTestEncoder(Options{}).EncodeAt(inv, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	if fields := strings.Split(out.Records[3], ";"); fields[6] != "soon" {
		t.Errorf("date field = %q, want verbatim value", fields[6])
	}
	if out.Warnings[0].Field != "invoiceDate" || out.Warnings[0].Line != 0 {
		t.Errorf("first warning = %v, want header date warning", out.Warnings[0])
	}
}

func TestEncodeTariffRendering(t *testing.T) {
	tests := []struct {
		tariff float64
		expect string
	}{
		{720, "720"},
		{732, "732"},
		{12.5, "12,5"},
	}
	for _, tt := range tests {
		if got := FormatPlain(tt.tariff); got != tt.expect {
			t.Errorf("FormatPlain(%v) = %q, want %q", tt.tariff, got, tt.expect)
		}
	}
}

func TestEncodeBatch(t *testing.T) {
	a := sampleInvoice()
	b := &types.Invoice{
		InvoiceNumber:  "314189",
		CustomerNumber: "C-2002",
		LineItems: []types.LineItem{
			{HSCode: "8417.40.00", Amount: num(0.1), Weight: num(2), Tariff: num(720), CustomsCode: "20"},
		},
	}

	out, err := newTestEncoder(Options{}).EncodeBatchAt([]*types.Invoice{a, b}, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeBatchAt() error = %v", err)
	}

	if len(out.Records) != 3+3*3 {
		t.Fatalf("record count = %d, want %d", len(out.Records), 12)
	}
	if out.Records[0] != "1;TOLL;00;2025-02-20-20.33.15.486;314188" {
		t.Errorf("header = %q, want first invoice number", out.Records[0])
	}
	if want := "3;TOLL;20;2025-02-20-20.33.15.486;1;C-2002"; out.Records[8] != want {
		t.Errorf("third customer record = %q, want %q", out.Records[8], want)
	}
	if want := "3;TOLL;50;2025-02-20-20.33.15.486;1;;84174000;0,000;2,000;20;720;0,10;N"; out.Records[10] != want {
		t.Errorf("third line record = %q, want %q", out.Records[10], want)
	}
	if want := "1;TOLL;99;2025-02-20-20.33.15.486;2588,84"; out.Records[11] != want {
		t.Errorf("footer = %q, want %q", out.Records[11], want)
	}
}

func TestEncodeBatchOfOneMatchesSingle(t *testing.T) {
	enc := newTestEncoder(Options{})

	single, err := enc.EncodeAt(sampleInvoice(), testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}
	batch, err := enc.EncodeBatchAt([]*types.Invoice{sampleInvoice()}, testTimestamp)
	if err != nil {
		t.Fatalf("EncodeBatchAt() error = %v", err)
	}
	if single.String() != batch.String() {
		t.Errorf("batch of one differs from single encoding")
	}
}

func TestEncodeMalformedInput(t *testing.T) {
	tests := []struct {
		name     string
		invoices []*types.Invoice
	}{
		{"nil invoice", []*types.Invoice{nil}},
		{"missing line items", []*types.Invoice{{InvoiceNumber: "1"}}},
		{"empty batch", nil},
		{"second invoice broken", []*types.Invoice{sampleInvoice(), {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestEncoder(Options{}).EncodeBatchAt(tt.invoices, testTimestamp)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("errors.Is(err, ErrMalformedInput) = false for %v", err)
			}
			var mie *MalformedInputError
			if !errors.As(err, &mie) {
				t.Errorf("error %T is not a *MalformedInputError", err)
			}
		})
	}
}

func TestEncodeConcurrentCalls(t *testing.T) {
	enc := newTestEncoder(Options{})
	want, err := enc.EncodeAt(sampleInvoice(), testTimestamp)
	if err != nil {
		t.Fatalf("EncodeAt() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := enc.EncodeAt(sampleInvoice(), testTimestamp)
			if err != nil {
				errs <- err.Error()
				return
			}
			if got.String() != want.String() {
				errs <- "output differs"
			}
		}()
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}
