package dto

import (
	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
)

// AllocateRequest asks for the next number of a record type.
type AllocateRequest struct {
	RecordType  string `json:"record_type" binding:"required,recordtype"`
	RequestType string `json:"request_type" binding:"required_if=RecordType payment_request,max=64"`
}

// Fields returns the resolver inputs.
func (r AllocateRequest) Fields() numbering.Fields {
	return numbering.Fields{RequestType: r.RequestType}
}

// NumberResponse is an allocated or parsed number.
type NumberResponse struct {
	Prefix  string `json:"prefix"`
	Period  string `json:"period"`
	Counter uint64 `json:"counter"`
	Display string `json:"display,omitempty"`
}

// ToNumberResponse converts an allocation result.
func ToNumberResponse(n numbering.AllocatedNumber) NumberResponse {
	return NumberResponse{
		Prefix:  n.Key.Prefix,
		Period:  n.Key.Period,
		Counter: n.Counter,
		Display: n.Display,
	}
}

// BootstrapRequest seeds a partition from an observed maximum.
type BootstrapRequest struct {
	Prefix      string `json:"prefix" binding:"required,seqprefix"`
	Period      string `json:"period" binding:"required,period"`
	MaxObserved uint64 `json:"max_observed"`
}

// Key returns the partition being bootstrapped.
func (r BootstrapRequest) Key() numbering.PartitionKey {
	return numbering.PartitionKey{Prefix: r.Prefix, Period: r.Period}
}

// BootstrapResponse reports the counter after bootstrap.
type BootstrapResponse struct {
	Prefix    string `json:"prefix"`
	Period    string `json:"period"`
	LastValue uint64 `json:"last_value"`
}

// BackfillRequest seeds a partition from the numbers already issued to
// records of a type.
type BackfillRequest struct {
	RecordType  string `json:"record_type" binding:"required,recordtype"`
	RequestType string `json:"request_type" binding:"required_if=RecordType payment_request,max=64"`
	Period      string `json:"period" binding:"required,period"`
}

// Fields returns the resolver inputs.
func (r BackfillRequest) Fields() numbering.Fields {
	return numbering.Fields{RequestType: r.RequestType}
}

// BackfillResponse reports one backfill run.
type BackfillResponse struct {
	Prefix      string                        `json:"prefix"`
	Period      string                        `json:"period"`
	MaxObserved uint64                        `json:"max_observed"`
	LastValue   uint64                        `json:"last_value"`
	Accepted    int                           `json:"accepted"`
	Rejected    []appnumbering.RejectedNumber `json:"rejected"`
}

// ToBackfillResponse converts a backfill report.
func ToBackfillResponse(r *appnumbering.BackfillReport) BackfillResponse {
	rejected := r.Rejected
	if rejected == nil {
		rejected = []appnumbering.RejectedNumber{}
	}
	return BackfillResponse{
		Prefix:      r.Key.Prefix,
		Period:      r.Key.Period,
		MaxObserved: r.MaxObserved,
		LastValue:   r.LastValue,
		Accepted:    r.Accepted,
		Rejected:    rejected,
	}
}

// ParseRequest carries a display number to decompose.
type ParseRequest struct {
	Display string `json:"display" binding:"required,max=64"`
}

// HealthResponse reports service and store health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
