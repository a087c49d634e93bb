package numbering

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// RecordType names a kind of business record that carries a sequence number.
type RecordType string

const (
	RecordTypeCustomer       RecordType = "customer"
	RecordTypeBooking        RecordType = "booking"
	RecordTypePaymentRequest RecordType = "payment_request"
)

// DefaultWidth is the zero-padded counter width used by every shipped scheme.
const DefaultWidth = 5

// MaxWidth bounds the counter width so that every capacity fits a uint64.
const MaxWidth = 18

// Fields carries the record attributes the resolver may consult.
type Fields struct {
	RequestType string
}

// RequestTypePrefix maps one payment request type to its prefix.
type RequestTypePrefix struct {
	RequestType string `mapstructure:"request_type" json:"request_type"`
	Prefix      string `mapstructure:"prefix" json:"prefix"`
}

// Scheme describes how one record type is numbered. A scheme either has a
// fixed Prefix or a RequestTypes table, never both.
type Scheme struct {
	RecordType   RecordType          `mapstructure:"record_type" json:"record_type"`
	Prefix       string              `mapstructure:"prefix" json:"prefix,omitempty"`
	Width        int                 `mapstructure:"width" json:"width"`
	RequestTypes []RequestTypePrefix `mapstructure:"request_types" json:"request_types,omitempty"`
}

// DefaultSchemes returns the back-office numbering table.
func DefaultSchemes() []Scheme {
	return []Scheme{
		{RecordType: RecordTypeCustomer, Prefix: "C", Width: DefaultWidth},
		{RecordType: RecordTypeBooking, Prefix: "AGLC", Width: DefaultWidth},
		{
			RecordType: RecordTypePaymentRequest,
			Width:      DefaultWidth,
			RequestTypes: []RequestTypePrefix{
				{RequestType: "Check", Prefix: "CR"},
				{RequestType: "Manager's Check", Prefix: "MCR"},
				{RequestType: "Petty Cash", Prefix: "PCR"},
			},
		},
	}
}

// SchemeRegistry is the validated, read-only view of a scheme table.
type SchemeRegistry struct {
	schemes      map[RecordType]Scheme
	requestTypes map[RecordType]map[string]string
	widths       map[string]int
	owners       map[string]RecordType
}

// NewSchemeRegistry validates schemes and indexes them for lookup.
func NewSchemeRegistry(schemes []Scheme) (*SchemeRegistry, error) {
	r := &SchemeRegistry{
		schemes:      make(map[RecordType]Scheme, len(schemes)),
		requestTypes: make(map[RecordType]map[string]string),
		widths:       make(map[string]int),
		owners:       make(map[string]RecordType),
	}
	if len(schemes) == 0 {
		return nil, fmt.Errorf("%w: no schemes configured", ErrInvalidScheme)
	}

	for _, s := range schemes {
		if s.RecordType == "" {
			return nil, fmt.Errorf("%w: scheme without record type", ErrInvalidScheme)
		}
		if _, dup := r.schemes[s.RecordType]; dup {
			return nil, fmt.Errorf("%w: record type %q configured twice", ErrInvalidScheme, s.RecordType)
		}
		if s.Width < 1 || s.Width > MaxWidth {
			return nil, fmt.Errorf("%w: record type %q width %d outside 1..%d", ErrInvalidScheme, s.RecordType, s.Width, MaxWidth)
		}

		switch {
		case s.Prefix != "" && len(s.RequestTypes) > 0:
			return nil, fmt.Errorf("%w: record type %q has both a prefix and request types", ErrInvalidScheme, s.RecordType)
		case s.Prefix != "":
			if err := r.claimPrefix(s.Prefix, s.Width, s.RecordType); err != nil {
				return nil, err
			}
		case len(s.RequestTypes) > 0:
			table := make(map[string]string, len(s.RequestTypes))
			for _, rt := range s.RequestTypes {
				name := NormalizeRequestType(rt.RequestType)
				if name == "" {
					return nil, fmt.Errorf("%w: record type %q has an empty request type", ErrInvalidScheme, s.RecordType)
				}
				if _, dup := table[name]; dup {
					return nil, fmt.Errorf("%w: request type %q configured twice", ErrInvalidScheme, rt.RequestType)
				}
				if err := r.claimPrefix(rt.Prefix, s.Width, s.RecordType); err != nil {
					return nil, err
				}
				table[name] = rt.Prefix
			}
			r.requestTypes[s.RecordType] = table
		default:
			return nil, fmt.Errorf("%w: record type %q has no prefix", ErrInvalidScheme, s.RecordType)
		}

		r.schemes[s.RecordType] = s
	}

	return r, nil
}

// MustNewSchemeRegistry is NewSchemeRegistry for tables known to be valid.
func MustNewSchemeRegistry(schemes []Scheme) *SchemeRegistry {
	r, err := NewSchemeRegistry(schemes)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns a registry over DefaultSchemes.
func DefaultRegistry() *SchemeRegistry {
	return MustNewSchemeRegistry(DefaultSchemes())
}

// claimPrefix registers prefix for recordType. Prefixes are restricted to
// uppercase ASCII letters so the first digit of a display always marks the
// end of its prefix; together with uniqueness this keeps Parse unambiguous
// even when one prefix begins another (C and CR).
func (r *SchemeRegistry) claimPrefix(prefix string, width int, recordType RecordType) error {
	if prefix == "" {
		return fmt.Errorf("%w: record type %q has an empty prefix", ErrInvalidScheme, recordType)
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < 'A' || prefix[i] > 'Z' {
			return fmt.Errorf("%w: prefix %q must be uppercase ASCII letters", ErrInvalidScheme, prefix)
		}
	}
	if owner, taken := r.owners[prefix]; taken {
		return fmt.Errorf("%w: prefix %q used by both %q and %q", ErrInvalidScheme, prefix, owner, recordType)
	}
	r.owners[prefix] = recordType
	r.widths[prefix] = width
	return nil
}

// Resolve computes the partition key for a new record of recordType at now.
func (r *SchemeRegistry) Resolve(recordType RecordType, fields Fields, now time.Time) (PartitionKey, error) {
	prefix, err := r.PrefixFor(recordType, fields)
	if err != nil {
		return PartitionKey{}, err
	}
	return NewPartitionKey(prefix, now), nil
}

// PrefixFor returns the prefix for recordType without deriving a period.
func (r *SchemeRegistry) PrefixFor(recordType RecordType, fields Fields) (string, error) {
	s, ok := r.schemes[recordType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRecordType, recordType)
	}
	if s.Prefix != "" {
		return s.Prefix, nil
	}
	prefix, ok := r.requestTypes[recordType][NormalizeRequestType(fields.RequestType)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRequestType, fields.RequestType)
	}
	return prefix, nil
}

// Width returns the counter width for prefix.
func (r *SchemeRegistry) Width(prefix string) (int, bool) {
	w, ok := r.widths[prefix]
	return w, ok
}

// Owner returns the record type that owns prefix.
func (r *SchemeRegistry) Owner(prefix string) (RecordType, bool) {
	rt, ok := r.owners[prefix]
	return rt, ok
}

// Scheme returns the scheme registered for recordType.
func (r *SchemeRegistry) Scheme(recordType RecordType) (Scheme, bool) {
	s, ok := r.schemes[recordType]
	return s, ok
}

// Prefixes lists every registered prefix in lexical order.
func (r *SchemeRegistry) Prefixes() []string {
	out := make([]string, 0, len(r.widths))
	for p := range r.widths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var apostrophes = strings.NewReplacer("’", "'", "ʼ", "'")

// NormalizeRequestType canonicalises a request type for table lookup:
// surrounding space is trimmed, the text is NFC-normalised and typographic
// apostrophes fold to ASCII. Case is preserved.
func NormalizeRequestType(s string) string {
	return apostrophes.Replace(norm.NFC.String(strings.TrimSpace(s)))
}
