package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Number is a loosely-typed numeric field. It decodes from numbers, numeric
// strings ("2.50", "2,50", "1.234,56") and null. Values that cannot be read
// as a finite number decode to an invalid Number instead of failing the
// whole document.
type Number struct {
	value float64
	valid bool
}

// NewNumber returns a valid Number holding f. Non-finite values are stored
// as invalid.
func NewNumber(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return Number{value: f, valid: true}
}

// Float returns the value and whether it is usable.
func (n Number) Float() (float64, bool) {
	return n.value, n.valid
}

// Valid reports whether the number holds a finite value.
func (n Number) Valid() bool {
	return n.valid
}

// ParseNumber reads s using the same rules as the JSON and YAML decoders.
//
// Separators follow the Danish/German form input:
//   - a lone comma is the decimal separator: "1,234" is 1.234
//   - a lone dot is the decimal separator: "1.234" is 1.234
//   - with both present, dots group thousands: "1.234,56" is 1234.56
//
// Thousands written with a comma ("1,234" meaning 1234) are not supported.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}
	}

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		// German grouping: 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return NewNumber(f)
}

// UnmarshalJSON never returns an error; undecodable input yields an invalid
// Number.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*n = Number{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = Number{}
			return nil
		}
		*n = ParseNumber(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			*n = Number{}
			return nil
		}
		*n = NewNumber(f)
	}
	return nil
}

// MarshalJSON writes invalid numbers as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.value, 'f', -1, 64)), nil
}

// UnmarshalYAML accepts any scalar; non-scalar nodes and null yield an
// invalid Number.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		*n = Number{}
		return nil
	}
	*n = ParseNumber(node.Value)
	return nil
}

// MarshalYAML writes invalid numbers as null.
func (n Number) MarshalYAML() (interface{}, error) {
	if !n.valid {
		return nil, nil
	}
	return n.value, nil
}

// String renders the number with Go's shortest representation, or "" when
// invalid.
func (n Number) String() string {
	if !n.valid {
		return ""
	}
	return strconv.FormatFloat(n.value, 'f', -1, 64)
}
