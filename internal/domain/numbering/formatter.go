package numbering

import (
	"fmt"
	"strconv"
)

// Formatter renders and parses display numbers using a scheme registry for
// prefix widths.
type Formatter struct {
	registry *SchemeRegistry
}

// NewFormatter creates a formatter over registry.
func NewFormatter(registry *SchemeRegistry) *Formatter {
	return &Formatter{registry: registry}
}

// Capacity returns the largest counter representable for prefix.
func (f *Formatter) Capacity(prefix string) (uint64, error) {
	width, ok := f.registry.Width(prefix)
	if !ok {
		return 0, fmt.Errorf("%w: unknown prefix %q", ErrUnsupportedRecordType, prefix)
	}
	return capacity(width), nil
}

// Format renders key and counter as prefix ++ period ++ zero-padded counter.
func (f *Formatter) Format(key PartitionKey, counter uint64) (string, error) {
	width, ok := f.registry.Width(key.Prefix)
	if !ok {
		return "", fmt.Errorf("%w: unknown prefix %q", ErrUnsupportedRecordType, key.Prefix)
	}
	if err := key.Validate(); err != nil {
		return "", err
	}
	if counter == 0 || counter > capacity(width) {
		return "", fmt.Errorf("%w: %d with width %d", ErrCounterOutOfRange, counter, width)
	}
	return fmt.Sprintf("%s%s%0*d", key.Prefix, key.Period, width, counter), nil
}

// Parse splits a display number back into its key and counter. The display
// must be a registered prefix followed by a 4-digit period and exactly the
// prefix's width in digits.
func (f *Formatter) Parse(display string) (PartitionKey, uint64, error) {
	split := 0
	for split < len(display) && (display[split] < '0' || display[split] > '9') {
		split++
	}
	prefix, rest := display[:split], display[split:]

	width, ok := f.registry.Width(prefix)
	if !ok {
		return PartitionKey{}, 0, fmt.Errorf("%w: %q has no known prefix", ErrMalformedNumber, display)
	}
	if len(rest) != len(PeriodLayout)+width || !isDigits(rest) {
		return PartitionKey{}, 0, fmt.Errorf("%w: %q does not match %s<yyyy><%d digits>", ErrMalformedNumber, display, prefix, width)
	}

	period, digits := rest[:len(PeriodLayout)], rest[len(PeriodLayout):]
	counter, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || counter == 0 {
		return PartitionKey{}, 0, fmt.Errorf("%w: %q has no counter", ErrMalformedNumber, display)
	}
	return PartitionKey{Prefix: prefix, Period: period}, counter, nil
}

func capacity(width int) uint64 {
	c := uint64(1)
	for i := 0; i < width; i++ {
		c *= 10
	}
	return c - 1
}
