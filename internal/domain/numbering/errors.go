package numbering

import "github.com/aglc/backoffice/internal/domain/shared"

// Allocation errors. Callers match them with errors.Is; the store and allocator
// wrap them with context using fmt.Errorf("%w: ...").
var (
	// ErrUnsupportedRequestType is returned when a payment request's type has no prefix.
	ErrUnsupportedRequestType = shared.NewDomainError("UNSUPPORTED_REQUEST_TYPE", "Request type has no number prefix")
	// ErrUnsupportedRecordType is returned when no scheme is registered for a record type.
	ErrUnsupportedRecordType = shared.NewDomainError("UNSUPPORTED_RECORD_TYPE", "Record type has no numbering scheme")
	// ErrStoreUnavailable is returned when the sequence store cannot be reached or fails I/O.
	ErrStoreUnavailable = shared.NewDomainError("STORE_UNAVAILABLE", "Sequence store is unavailable")
	// ErrAllocationFailed is returned on hold timeout, commit failure or an exhausted partition.
	ErrAllocationFailed = shared.NewDomainError("ALLOCATION_FAILED", "Sequence number allocation failed")
	// ErrMalformedNumber is returned by Parse for displays that do not match any scheme.
	ErrMalformedNumber = shared.NewDomainError("MALFORMED_NUMBER", "Display number is malformed")
	// ErrCounterOutOfRange is returned by Format when a counter does not fit the width.
	ErrCounterOutOfRange = shared.NewDomainError("COUNTER_OUT_OF_RANGE", "Counter does not fit the number width")
	// ErrInvalidScheme is returned when the scheme table fails validation.
	ErrInvalidScheme = shared.NewDomainError("INVALID_SCHEME", "Numbering scheme configuration is invalid")
)
