package dto

import "net/http"

// Error codes returned in ErrorInfo.Code. Format: ERR_<DESCRIPTION>.
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	ErrCodeTooLarge    = "ERR_REQUEST_TOO_LARGE"

	ErrCodeInvalidInput  = "ERR_INVALID_INPUT"
	ErrCodeInvalidState  = "ERR_INVALID_STATE"
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"

	ErrCodeUnsupportedRecordType  = "ERR_UNSUPPORTED_RECORD_TYPE"
	ErrCodeUnsupportedRequestType = "ERR_UNSUPPORTED_REQUEST_TYPE"
	ErrCodeMalformedNumber        = "ERR_MALFORMED_NUMBER"
	ErrCodeCounterOutOfRange      = "ERR_COUNTER_OUT_OF_RANGE"
	ErrCodeAllocationFailed       = "ERR_ALLOCATION_FAILED"
	ErrCodeStoreUnavailable       = "ERR_STORE_UNAVAILABLE"
	ErrCodeInvalidScheme          = "ERR_INVALID_SCHEME"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	ErrCodeTooLarge:    http.StatusRequestEntityTooLarge,

	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,

	// resolution failures never touch the store
	ErrCodeUnsupportedRecordType:  http.StatusBadRequest,
	ErrCodeUnsupportedRequestType: http.StatusBadRequest,
	ErrCodeMalformedNumber:        http.StatusBadRequest,
	ErrCodeCounterOutOfRange:      http.StatusUnprocessableEntity,

	// the caller may retry both with a fresh request
	ErrCodeAllocationFailed: http.StatusServiceUnavailable,
	ErrCodeStoreUnavailable: http.StatusServiceUnavailable,

	ErrCodeInvalidScheme: http.StatusInternalServerError,
}

// GetHTTPStatus returns the status for code, or 500 for unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes maps shared.DomainError codes to RPC codes.
var domainErrorCodes = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_STATE":            ErrCodeInvalidState,
	"INVALID_NAME":             ErrCodeInvalidInput,
	"INVALID_CODE":             ErrCodeInvalidInput,
	"UNSUPPORTED_RECORD_TYPE":  ErrCodeUnsupportedRecordType,
	"UNSUPPORTED_REQUEST_TYPE": ErrCodeUnsupportedRequestType,
	"MALFORMED_NUMBER":         ErrCodeMalformedNumber,
	"COUNTER_OUT_OF_RANGE":     ErrCodeCounterOutOfRange,
	"ALLOCATION_FAILED":        ErrCodeAllocationFailed,
	"STORE_UNAVAILABLE":        ErrCodeStoreUnavailable,
	"INVALID_SCHEME":           ErrCodeInvalidScheme,
}

// NormalizeErrorCode converts a domain error code to its RPC form. Unknown
// codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if c, ok := domainErrorCodes[code]; ok {
		return c
	}
	return code
}
