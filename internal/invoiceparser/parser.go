// =============================================================================
// Invoice Export - Invoice Reader
// =============================================================================
//
// This module reads invoice files from the input directory. The file format
// is chosen by extension:
//   - .json         one invoice object or an array of invoices
//   - .yaml / .yml  one invoice mapping or a sequence of invoices
//   - .xlsx         sheet "Invoice" (key/value rows) + sheet "LineItems"
//   - .csv          one line item per row, grouped by invoice number
//
// ERROR HANDLING:
//   Every structurally unusable document (line items missing or not a list)
//   fails with an error wrapping types.ErrMalformedInput. Unreadable numeric
//   fields are not errors; they decode to invalid types.Number values and
//   the encoders substitute defaults.
//
// =============================================================================

package invoiceparser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/invoice-export/internal/types"
	"gopkg.in/yaml.v3"
)

// SupportedExtensions lists the input extensions Parse understands.
var SupportedExtensions = []string{".json", ".yaml", ".yml", ".xlsx", ".csv"}

// IsSupported reports whether path has a supported extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// Parse reads all invoices stored in the file at path.
//
// PARAMETERS:
//   - path: The invoice file. Its extension selects the decoder.
//
// RETURNS:
//   - The invoices in file order. Never empty on success.
//   - An error if the file cannot be read or is malformed.
func Parse(path string) ([]*types.Invoice, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file, filepath.Ext(path))
}

// ParseReader decodes invoices from r using the decoder for ext.
func ParseReader(r io.Reader, ext string) ([]*types.Invoice, error) {
	var (
		invoices []*types.Invoice
		err      error
	)

	switch strings.ToLower(ext) {
	case ".json":
		invoices, err = ParseJSON(r)
	case ".yaml", ".yml":
		invoices, err = ParseYAML(r)
	case ".xlsx":
		invoices, err = ParseXLSX(r)
	case ".csv":
		invoices, err = ParseCSV(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if len(invoices) == 0 {
		return nil, fmt.Errorf("%w: no invoices in file", types.ErrMalformedInput)
	}
	return invoices, nil
}

// =============================================================================
// JSON
// =============================================================================

// ParseJSON decodes one invoice object or an array of them.
func ParseJSON(r io.Reader) ([]*types.Invoice, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", types.ErrMalformedInput)
	}

	if trimmed[0] != '[' {
		var inv types.Invoice
		if err := json.Unmarshal(trimmed, &inv); err != nil {
			return nil, wrapMalformed(err)
		}
		return []*types.Invoice{&inv}, nil
	}

	var invoices []*types.Invoice
	if err := json.Unmarshal(trimmed, &invoices); err != nil {
		return nil, wrapMalformed(err)
	}
	for i, inv := range invoices {
		if inv == nil {
			return nil, fmt.Errorf("%w: invoice %d is null", types.ErrMalformedInput, i)
		}
	}
	return invoices, nil
}

// wrapMalformed makes sure a decode error matches types.ErrMalformedInput.
func wrapMalformed(err error) error {
	if errors.Is(err, types.ErrMalformedInput) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
}

// =============================================================================
// YAML
// =============================================================================

// ParseYAML decodes one invoice mapping or a sequence of them.
func ParseYAML(r io.Reader) ([]*types.Invoice, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", types.ErrMalformedInput)
		}
		return nil, wrapMalformed(err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var nodes []*yaml.Node
	switch root.Kind {
	case yaml.MappingNode:
		nodes = []*yaml.Node{root}
	case yaml.SequenceNode:
		nodes = root.Content
	default:
		return nil, fmt.Errorf("%w: document is not an invoice", types.ErrMalformedInput)
	}

	invoices := make([]*types.Invoice, 0, len(nodes))
	for i, node := range nodes {
		inv, err := decodeYAMLInvoice(node)
		if err != nil {
			return nil, fmt.Errorf("invoice %d: %w", i, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// decodeYAMLInvoice applies the same structural check as the JSON decoder.
func decodeYAMLInvoice(node *yaml.Node) (*types.Invoice, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: invoice is not a mapping", types.ErrMalformedInput)
	}

	items := mappingValue(node, "lineItems")
	switch {
	case items == nil:
		return nil, fmt.Errorf("%w: lineItems is missing", types.ErrMalformedInput)
	case items.Kind != yaml.SequenceNode:
		return nil, fmt.Errorf("%w: lineItems is not a list", types.ErrMalformedInput)
	}

	var inv types.Invoice
	if err := node.Decode(&inv); err != nil {
		return nil, wrapMalformed(err)
	}
	if inv.LineItems == nil {
		inv.LineItems = []types.LineItem{}
	}
	return &inv, nil
}

// mappingValue returns the value node for key, or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
