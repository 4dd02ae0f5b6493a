package taks

// =============================================================================
// RECORD GRAMMAR CONSTANTS
// =============================================================================

const (
	// Carrier is the literal second field of every record.
	Carrier = "TOLL"

	// FieldSeparator joins the fields of one record.
	FieldSeparator = ";"

	// RecordSeparator joins records in the exported file.
	RecordSeparator = "\n"
)

// Record type codes, in the order they appear in a file.
const (
	RecordBatchHeader  = "00"
	RecordBatchSummary = "10"
	RecordCustomerRef  = "20"
	RecordInvoiceInfo  = "40"
	RecordLineItem     = "50"
	RecordBatchFooter  = "99"
)

// Precision of the numeric fields.
const (
	QuantityPrecision = 3
	WeightPrecision   = 3
	AmountPrecision   = 2
)

// Flags for the duty-free field of record 50.
const (
	DutyFreeYes = "J"
	DutyFreeNo  = "N"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options holds the constants and defaults written by the encoder. The zero
// value is valid; unset fields take the documented defaults.
type Options struct {
	// BatchSummary is the constant tail of record 10.
	// Default: FAS;524;0,0000;17,000
	BatchSummary []string `yaml:"batch_summary"`

	// DefaultHSCode replaces an empty classification code.
	// Default: "83024100"
	DefaultHSCode string `yaml:"default_hs_code"`

	// DefaultNetWeight replaces a missing net weight. Already formatted.
	// Default: "1,020"
	DefaultNetWeight string `yaml:"default_net_weight"`

	// DefaultCustomsCode replaces an empty customs code.
	// Default: "20"
	DefaultCustomsCode string `yaml:"default_customs_code"`

	// DefaultTariff replaces a missing tariff. Already formatted.
	// Default: "720"
	DefaultTariff string `yaml:"default_tariff"`

	// DescriptionWidth switches field 8 of record 50 from the quantity to
	// the description left-padded to this width. Zero keeps the quantity.
	DescriptionWidth int `yaml:"description_width"`
}

// DefaultOptions returns Options with every default filled in.
func DefaultOptions() Options {
	return Options{}.WithDefaults()
}

// WithDefaults returns a copy with unset fields filled in.
func (o Options) WithDefaults() Options {
	if len(o.BatchSummary) == 0 {
		o.BatchSummary = []string{"FAS", "524", "0,0000", "17,000"}
	}
	if o.DefaultHSCode == "" {
		o.DefaultHSCode = "83024100"
	}
	if o.DefaultNetWeight == "" {
		o.DefaultNetWeight = "1,020"
	}
	if o.DefaultCustomsCode == "" {
		o.DefaultCustomsCode = "20"
	}
	if o.DefaultTariff == "" {
		o.DefaultTariff = "720"
	}
	if o.DescriptionWidth < 0 {
		o.DescriptionWidth = 0
	}
	return o
}
