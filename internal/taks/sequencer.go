package taks

import "time"

// TimestampLayout is the TAKS record timestamp: YYYY-MM-DD-HH.MM.SS.mmm
const TimestampLayout = "2006-01-02-15.04.05.000"

// Sequencer produces the shared run timestamp and record sequence numbers.
type Sequencer struct {
	clock func() time.Time
}

// NewSequencer returns a Sequencer reading the given clock. A nil clock
// means time.Now.
func NewSequencer(clock func() time.Time) *Sequencer {
	if clock == nil {
		clock = time.Now
	}
	return &Sequencer{clock: clock}
}

// Timestamp formats the current clock reading. Call it once per encoding
// run and reuse the value for every record.
func (s *Sequencer) Timestamp() string {
	return s.clock().Format(TimestampLayout)
}

// LineSequence maps a zero-based line index to its 1-based sequence number.
func (s *Sequencer) LineSequence(index int) int {
	return index + 1
}
