package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/ginjaninja78/invoice-export/internal/types"
)

// =============================================================================
// XML DOCUMENT
// =============================================================================
//
// XML STRUCTURE:
//
//   <Invoice>
//     <Details>
//       <InvoiceNumber>314188</InvoiceNumber>
//       <InvoiceDate>2023-12-03</InvoiceDate>
//     </Details>
//     <LineItems>
//       <Item n="1">                  <!-- global numbering -->
//         <HSCode>6117.80.80</HSCode>
//         <Description>Buff</Description>
//         <Quantity>1000</Quantity>
//         <UnitPrice>2.44</UnitPrice>
//         <Amount>2438.74</Amount>
//       </Item>
//     </LineItems>
//   </Invoice>
//
// Several invoices are wrapped in <Invoices>; item numbering continues
// across them the way TAKS line sequences do.

// XMLExporter writes the invoice XML document.
type XMLExporter struct {
	// Indent is the indentation unit. Empty writes compact XML.
	Indent string

	// OmitDeclaration drops the <?xml ...?> header.
	OmitDeclaration bool
}

func (e *XMLExporter) Name() string      { return "xml" }
func (e *XMLExporter) MIMEType() string  { return "application/xml" }
func (e *XMLExporter) Extension() string { return ".xml" }

type xmlInvoices struct {
	XMLName  xml.Name     `xml:"Invoices"`
	Invoices []xmlInvoice `xml:"Invoice"`
}

type xmlInvoice struct {
	XMLName   xml.Name   `xml:"Invoice"`
	Details   xmlDetails `xml:"Details"`
	LineItems []xmlItem  `xml:"LineItems>Item"`
}

type xmlDetails struct {
	InvoiceNumber string `xml:"InvoiceNumber"`
	InvoiceDate   string `xml:"InvoiceDate"`
	Currency      string `xml:"Currency,omitempty"`
}

type xmlItem struct {
	N           int    `xml:"n,attr"`
	HSCode      string `xml:"HSCode"`
	Description string `xml:"Description"`
	Quantity    string `xml:"Quantity"`
	UnitPrice   string `xml:"UnitPrice"`
	Amount      string `xml:"Amount"`
}

// Export encodes the invoices.
func (e *XMLExporter) Export(invoices []*types.Invoice) (*Result, error) {
	lineItems, err := checkInvoices(invoices)
	if err != nil {
		return nil, err
	}

	index := 0
	docs := make([]xmlInvoice, len(invoices))
	for i, inv := range invoices {
		docs[i] = buildXMLInvoice(inv, &index)
	}

	var root interface{} = xmlInvoices{Invoices: docs}
	if len(docs) == 1 {
		root = docs[0]
	}

	var buf bytes.Buffer
	if !e.OmitDeclaration {
		buf.WriteString(xml.Header)
	}
	enc := xml.NewEncoder(&buf)
	enc.Indent("", e.Indent)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode XML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode XML: %w", err)
	}
	buf.WriteByte('\n')

	return &Result{Data: buf.Bytes(), Invoices: len(invoices), LineItems: lineItems}, nil
}

// buildXMLInvoice converts one invoice. globalIndex carries the item
// number across invoices.
func buildXMLInvoice(inv *types.Invoice, globalIndex *int) xmlInvoice {
	doc := xmlInvoice{
		Details: xmlDetails{
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceDate:   inv.InvoiceDate,
			Currency:      inv.Currency,
		},
		LineItems: make([]xmlItem, len(inv.LineItems)),
	}

	for i, item := range inv.LineItems {
		*globalIndex++
		hs := item.HSCode
		if hs == "" {
			hs = item.ProductNumber
		}
		doc.LineItems[i] = xmlItem{
			N:           *globalIndex,
			HSCode:      hs,
			Description: item.Description,
			Quantity:    dotDecimal(item.Quantity),
			UnitPrice:   dotDecimal(item.UnitPrice),
			Amount:      dotDecimal(item.Amount),
		}
	}
	return doc
}

// dotDecimal renders n in its shortest form, or "" when n is unusable.
func dotDecimal(n types.Number) string {
	f, ok := n.Float()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
