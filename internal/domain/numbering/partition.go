// Package numbering holds the sequence number domain: partition keys, the
// declarative scheme table, display formatting and the store contract the
// allocator runs against.
package numbering

import (
	"fmt"
	"time"
)

// PeriodLayout is the time layout used to derive a partition period.
const PeriodLayout = "2006"

// PartitionKey identifies one independent counter.
type PartitionKey struct {
	Prefix string `json:"prefix"`
	Period string `json:"period"`
}

// NewPartitionKey builds a key for the year of now.
func NewPartitionKey(prefix string, now time.Time) PartitionKey {
	return PartitionKey{Prefix: prefix, Period: PeriodOf(now)}
}

// PeriodOf returns the 4-digit year of t.
func PeriodOf(t time.Time) string {
	return t.Format(PeriodLayout)
}

// String renders the key as prefix/period, for logs and metrics.
func (k PartitionKey) String() string {
	return fmt.Sprintf("%s/%s", k.Prefix, k.Period)
}

// Validate checks the key shape without consulting any scheme.
func (k PartitionKey) Validate() error {
	if k.Prefix == "" {
		return fmt.Errorf("%w: empty prefix", ErrUnsupportedRecordType)
	}
	if !isDigits(k.Period) || len(k.Period) != len(PeriodLayout) {
		return fmt.Errorf("%w: period %q is not a 4-digit year", ErrMalformedNumber, k.Period)
	}
	return nil
}

// SequenceCounter is the persisted state of one partition.
// LastValue is zero until the first allocation and never decreases.
type SequenceCounter struct {
	Key       PartitionKey
	LastValue uint64
	UpdatedAt time.Time
}

// AllocatedNumber is the result of one successful allocation.
type AllocatedNumber struct {
	Key     PartitionKey `json:"key"`
	Counter uint64       `json:"counter"`
	Display string       `json:"display"`
}

// String returns the display form.
func (n AllocatedNumber) String() string {
	return n.Display
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
