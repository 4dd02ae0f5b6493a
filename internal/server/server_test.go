package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/invoice-export/internal/config"
	"github.com/ginjaninja78/invoice-export/internal/invoiceparser"
	"github.com/ginjaninja78/invoice-export/internal/taks"
)

const invoiceJSON = `{
  "invoiceNumber": "314188",
  "invoiceDate": "2023-12-03",
  "sender": "Acme Corporation",
  "customerNumber": "C-1001",
  "customerName": "Nordisk Import A/S",
  "currency": "EUR",
  "reference": "PO-77",
  "lineItems": [
    {"hsCode": "6117.80.80", "description": "Buff", "countryOfOrigin": "CN",
     "quantity": 1000, "unitPrice": 2.44, "amount": 2438.74, "weight": 1.02,
     "customsCode": "20", "tariff": 720, "dutyFree": false}
  ]
}`

func fixedClock() time.Time {
	return time.Date(2025, 2, 20, 20, 33, 15, 486_000_000, time.UTC)
}

func newTestServer(t *testing.T, profiles map[string]*config.ExportProfile) *Server {
	t.Helper()
	s, err := New(Options{
		Profiles:  profiles,
		Sequencer: taks.NewSequencer(fixedClock),
		Clock:     fixedClock,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestHealthz(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestFormats(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodGet, "/api/formats", "")

	var formats []formatInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &formats); err != nil {
		t.Fatal(err)
	}
	if len(formats) != 5 {
		t.Fatalf("formats = %+v", formats)
	}
	if formats[3].Name != "taks" || formats[3].Extension != ".txt" {
		t.Errorf("formats[3] = %+v", formats[3])
	}
}

func TestExportTAKSMatchesLibrary(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/api/export/taks", invoiceJSON)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	invoices, err := invoiceparser.ParseJSON(strings.NewReader(invoiceJSON))
	if err != nil {
		t.Fatal(err)
	}
	enc := taks.NewEncoder(taks.Options{}, taks.NewSequencer(fixedClock), nil)
	want, err := enc.EncodeBatch(invoices)
	if err != nil {
		t.Fatal(err)
	}

	if rec.Body.String() != want.String() {
		t.Errorf("body =\n%s\nwant\n%s", rec.Body.String(), want.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %s", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="invoice-data-2025-02-20T20-33-15.486Z.txt"` {
		t.Errorf("Content-Disposition = %s", got)
	}
	if rec.Header().Get("X-Export-Id") == "" {
		t.Error("missing X-Export-Id")
	}
	if got := rec.Header().Get("X-Export-Warnings"); got != "0" {
		t.Errorf("X-Export-Warnings = %s", got)
	}
}

func TestExportOtherFormats(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		format      string
		contentType string
		extension   string
		contains    string
	}{
		{"json", "application/json", ".json", `"invoiceNumber": "314188"`},
		{"customs-json", "application/json", ".json", `"hsCode": "61178080"`},
		{"xml", "application/xml", ".xml", "<InvoiceNumber>314188</InvoiceNumber>"},
		{"csv", "text/csv; charset=utf-8", ".csv", "6117.80.80,CN,Buff,1000,2.44,2438.74"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/export/"+tt.format, invoiceJSON)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %s", got)
			}
			if !strings.Contains(rec.Header().Get("Content-Disposition"), tt.extension+`"`) {
				t.Errorf("Content-Disposition = %s", rec.Header().Get("Content-Disposition"))
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body missing %q:\n%s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestExportBatchArray(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/api/export/taks", "["+invoiceJSON+","+invoiceJSON+"]")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	records := strings.Split(rec.Body.String(), "\n")
	if len(records) != 9 || !strings.HasSuffix(records[8], ";4877,48") {
		t.Errorf("batch records = %v", records)
	}
}

func TestExportErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"unknown format", "/api/export/pdf", invoiceJSON, http.StatusNotFound, "unknown_format"},
		{"unknown profile", "/api/export/taks?profile=nope", invoiceJSON, http.StatusNotFound, "unknown_profile"},
		{"missing line items", "/api/export/taks", `{"invoiceNumber": "1"}`, http.StatusBadRequest, "malformed_input"},
		{"line items not a list", "/api/export/taks", `{"invoiceNumber": "1", "lineItems": {}}`, http.StatusBadRequest, "malformed_input"},
		{"not json", "/api/export/json", `invoice`, http.StatusBadRequest, "malformed_input"},
		{"empty array", "/api/export/xml", `[]`, http.StatusBadRequest, "malformed_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if body := decodeError(t, rec); body.Error != tt.code || body.ErrorDescription == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestExportBodyTooLarge(t *testing.T) {
	s, err := New(Options{MaxBodyBytes: 16}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	rec := do(s, http.MethodPost, "/api/export/taks", invoiceJSON)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestExportWithProfile(t *testing.T) {
	profiles := map[string]*config.ExportProfile{
		"toll": {
			ProfileCode: "toll",
			TAKS:        taks.Options{DefaultTariff: "732"},
			Transformations: []config.TransformationRule{
				{Field: "reference", Actions: []config.TransformationAction{{Type: "prepend_string", Value: "REF-"}}},
			},
		},
		"strict": {ProfileCode: "strict", StrictValidation: true},
	}
	s := newTestServer(t, profiles)

	noTariff := strings.Replace(invoiceJSON, `"tariff": 720, `, "", 1)
	rec := do(s, http.MethodPost, "/api/export/taks?profile=toll", noTariff)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, ";20;732;2438,74;N") {
		t.Errorf("profile tariff default not applied:\n%s", body)
	}
	if !strings.Contains(body, ";REF-PO-77;") {
		t.Errorf("transformation not applied:\n%s", body)
	}
	if got := rec.Header().Get("X-Export-Warnings"); got != "1" {
		t.Errorf("X-Export-Warnings = %s", got)
	}

	sloppy := strings.Replace(invoiceJSON, `"6117.80.80"`, `"61178080"`, 1)
	rec = do(s, http.MethodPost, "/api/export/taks?profile=strict", sloppy)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var vr ValidationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &vr); err != nil {
		t.Fatal(err)
	}
	if vr.Error != "validation_failed" || len(vr.Issues) != 1 || vr.Issues[0].Field != "hsCode" {
		t.Errorf("validation response = %+v", vr)
	}
}
