// =============================================================================
// Invoice Export - TAKS Numeric Formatter
// =============================================================================
//
// TAKS is consumed by a customs clearance system that rejects malformed
// numbers. Every numeric field is written:
//   - rounded half away from zero to a fixed precision
//   - with a decimal comma instead of a dot
//   - without grouping separators
//
// Rounding is done on shopspring/decimal values so that the decimal text of
// a float (e.g. 1.005) rounds the way a person reading it expects.
//
// =============================================================================

package taks

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// FormatDecimal rounds value to precision digits and renders it with a
// decimal comma. Non-finite values are written as zero.
//
// EXAMPLES:
//   FormatDecimal(1.02, 3)     -> "1,020"
//   FormatDecimal(2438.738, 2) -> "2438,74"
//   FormatDecimal(0, 2)        -> "0,00"
func FormatDecimal(value float64, precision int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	return FormatAmount(decimal.NewFromFloat(value), precision)
}

// FormatAmount renders an exact decimal with a decimal comma.
func FormatAmount(d decimal.Decimal, precision int) string {
	if precision < 0 {
		precision = 0
	}
	rounded := d.Round(int32(precision))
	if rounded.IsZero() {
		// Avoid "-0,00" for tiny negative inputs.
		rounded = decimal.Zero
	}
	return strings.Replace(rounded.StringFixed(int32(precision)), ".", ",", 1)
}

// FormatPlain renders value in its shortest form with a decimal comma, so
// whole numbers have no fraction. Non-finite values are written as "0".
//
// EXAMPLES:
//   FormatPlain(720)  -> "720"
//   FormatPlain(17.5) -> "17,5"
func FormatPlain(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}
	return strings.Replace(strconv.FormatFloat(value, 'f', -1, 64), ".", ",", 1)
}

// StripDots removes every '.' from a classification code.
//
// EXAMPLE:
//   StripDots("6117.80.80") -> "61178080"
func StripDots(code string) string {
	return strings.ReplaceAll(code, ".", "")
}

// PadLeft left-pads text with spaces to at least width characters. Longer
// text is returned unchanged.
func PadLeft(text string, width int) string {
	n := utf8.RuneCountInString(text)
	if n >= width {
		return text
	}
	return strings.Repeat(" ", width-n) + text
}

// sanitizeText replaces characters that would break the record grammar.
func sanitizeText(s string) string {
	if !strings.ContainsAny(s, ";\r\n") {
		return s
	}
	return strings.NewReplacer(";", " ", "\r\n", " ", "\r", " ", "\n", " ").Replace(s)
}
