package export

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/ginjaninja78/invoice-export/internal/types"
)

func testOptions() Options {
	return Options{
		Sequencer: taks.NewSequencer(func() time.Time {
			return time.Date(2025, 2, 20, 20, 33, 15, 486_000_000, time.Local)
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func sampleInvoice() *types.Invoice {
	return &types.Invoice{
		InvoiceNumber:  "314188",
		InvoiceDate:    "2023-12-03",
		CustomerNumber: "C-1001",
		Currency:       "EUR",
		LineItems: []types.LineItem{
			{
				ProductNumber:   "6117.80.80",
				HSCode:          "6117.80.80",
				Description:     "Buff, 230 gsm",
				CountryOfOrigin: "CN",
				Quantity:        types.NewNumber(1000),
				UnitPrice:       types.NewNumber(2.44),
				Amount:          types.NewNumber(2438.74),
				Weight:          types.NewNumber(1.02),
				CustomsCode:     "20",
				Tariff:          types.NewNumber(720),
			},
			{
				ProductNumber:   "9999.99.99",
				Description:     "Opstart",
				CountryOfOrigin: "DK",
				Quantity:        types.NewNumber(1),
				Amount:          types.NewNumber(150),
				DutyFree:        true,
			},
		},
	}
}

func TestNewKnowsEveryFormat(t *testing.T) {
	tests := []struct {
		format    string
		mime      string
		extension string
	}{
		{"taks", "text/plain", ".txt"},
		{"json", "application/json", ".json"},
		{"customs-json", "application/json", ".json"},
		{"xml", "application/xml", ".xml"},
		{"csv", "text/csv", ".csv"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := New(tt.format, testOptions())
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.format, err)
			}
			if exp.Name() != tt.format || exp.MIMEType() != tt.mime || exp.Extension() != tt.extension {
				t.Errorf("exporter = %s/%s/%s", exp.Name(), exp.MIMEType(), exp.Extension())
			}
		})
	}

	if _, err := New("pdf", testOptions()); err == nil {
		t.Error("New(pdf) error = nil")
	}
	if got := strings.Join(Formats(), ","); got != "csv,customs-json,json,taks,xml" {
		t.Errorf("Formats() = %s", got)
	}
}

func TestEveryExporterRejectsMalformedInput(t *testing.T) {
	inputs := map[string][]*types.Invoice{
		"empty batch":     nil,
		"nil invoice":     {nil},
		"nil line items":  {{InvoiceNumber: "1"}},
		"second is nil":   {sampleInvoice(), nil},
	}

	for _, format := range Formats() {
		exp, err := New(format, testOptions())
		if err != nil {
			t.Fatal(err)
		}
		for name, invoices := range inputs {
			t.Run(format+"/"+name, func(t *testing.T) {
				if _, err := exp.Export(invoices); !errors.Is(err, types.ErrMalformedInput) {
					t.Errorf("Export() error = %v, want ErrMalformedInput", err)
				}
			})
		}
	}
}

func TestTAKSExporter(t *testing.T) {
	exp, _ := New("taks", testOptions())

	res, err := exp.Export([]*types.Invoice{sampleInvoice()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	lines := strings.Split(string(res.Data), "\n")
	if len(lines) != 3+3*2 {
		t.Fatalf("got %d records, want 9", len(lines))
	}
	if lines[0] != "1;TOLL;00;2025-02-20-20.33.15.486;314188" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[8] != "1;TOLL;99;2025-02-20-20.33.15.486;2588,74" {
		t.Errorf("footer = %q", lines[8])
	}
	if res.LineItems != 2 || res.Invoices != 1 {
		t.Errorf("counts = %d invoices, %d items", res.Invoices, res.LineItems)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected warnings for the second item's missing fields")
	}
}

func TestJSONExporter(t *testing.T) {
	exp := &JSONExporter{}

	res, err := exp.Export([]*types.Invoice{sampleInvoice()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasPrefix(string(res.Data), "{\n  \"invoiceNumber\": \"314188\"") {
		t.Errorf("single invoice not an indented object:\n%s", res.Data)
	}

	var back types.Invoice
	if err := json.Unmarshal(res.Data, &back); err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
	if len(back.LineItems) != 2 || back.LineItems[1].UnitPrice.Valid() {
		t.Errorf("decoded = %+v", back.LineItems)
	}

	res, err = exp.Export([]*types.Invoice{sampleInvoice(), sampleInvoice()})
	if err != nil {
		t.Fatalf("Export(batch) error = %v", err)
	}
	if !strings.HasPrefix(string(res.Data), "[") {
		t.Errorf("batch not an array:\n%s", res.Data)
	}
}

func TestCustomsJSONExporter(t *testing.T) {
	exp := &JSONExporter{Customs: true}

	res, err := exp.Export([]*types.Invoice{sampleInvoice()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc struct {
		InvoiceNumber string                   `json:"invoiceNumber"`
		LineItems     []map[string]interface{} `json:"lineItems"`
	}
	if err := json.Unmarshal(res.Data, &doc); err != nil {
		t.Fatalf("output does not decode: %v\n%s", err, res.Data)
	}
	if doc.InvoiceNumber != "314188" || len(doc.LineItems) != 2 {
		t.Fatalf("doc = %+v", doc)
	}

	first := doc.LineItems[0]
	tests := []struct {
		field  string
		expect string
	}{
		{"productNumber", "61178080"},
		{"hsCode", "61178080"},
		{"quantity", "1000"},
		{"unitPrice", "2,44"},
		{"amount", "2438,74"},
		{"weight", "1,020"},
		{"tariff", "720"},
	}
	for _, tt := range tests {
		if got := first[tt.field]; got != tt.expect {
			t.Errorf("%s = %v, want %q", tt.field, got, tt.expect)
		}
	}
	if got := doc.LineItems[1]["unitPrice"]; got != "" {
		t.Errorf("missing unitPrice = %v, want empty", got)
	}
}

func TestXMLExporter(t *testing.T) {
	exp := &XMLExporter{Indent: "  "}

	res, err := exp.Export([]*types.Invoice{sampleInvoice()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := string(res.Data)

	for _, want := range []string{
		xml.Header + "<Invoice>\n  <Details>\n    <InvoiceNumber>314188</InvoiceNumber>",
		"<InvoiceDate>2023-12-03</InvoiceDate>",
		`<Item n="1">`,
		"<HSCode>6117.80.80</HSCode>",
		"<Description>Buff, 230 gsm</Description>",
		"<UnitPrice>2.44</UnitPrice>",
		"<HSCode>9999.99.99</HSCode>",
		"<UnitPrice></UnitPrice>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("XML missing %q:\n%s", want, out)
		}
	}

	var back xmlInvoice
	if err := xml.Unmarshal(res.Data, &back); err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	if len(back.LineItems) != 2 || back.LineItems[1].N != 2 {
		t.Errorf("parsed items = %+v", back.LineItems)
	}
}

func TestXMLExporterBatchNumbering(t *testing.T) {
	exp := &XMLExporter{OmitDeclaration: true}

	res, err := exp.Export([]*types.Invoice{sampleInvoice(), sampleInvoice()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasPrefix(string(res.Data), "<Invoices><Invoice>") {
		t.Errorf("batch root:\n%s", res.Data)
	}

	var back xmlInvoices
	if err := xml.Unmarshal(res.Data, &back); err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	if got := back.Invoices[1].LineItems[1].N; got != 4 {
		t.Errorf("last item n = %d, want 4", got)
	}
}

func TestXMLExporterEscapesText(t *testing.T) {
	inv := sampleInvoice()
	inv.LineItems[0].Description = `Nuts & bolts <M8>`

	res, err := (&XMLExporter{}).Export([]*types.Invoice{inv})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(res.Data), "Nuts &amp; bolts &lt;M8&gt;") {
		t.Errorf("text not escaped:\n%s", res.Data)
	}
}

func TestCSVExporter(t *testing.T) {
	res, err := (&CSVExporter{}).Export([]*types.Invoice{sampleInvoice()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	want := "HS Code,Country of Origin,Description,Quantity,Unit Price,Amount\n" +
		"6117.80.80,CN,\"Buff, 230 gsm\",1000,2.44,2438.74\n" +
		"9999.99.99,DK,Opstart,1,,150\n"
	if got := string(res.Data); got != want {
		t.Errorf("CSV =\n%s\nwant\n%s", got, want)
	}
	if res.LineItems != 2 {
		t.Errorf("LineItems = %d", res.LineItems)
	}
}
