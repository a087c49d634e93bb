package finance

import (
	"strings"
	"time"

	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// PaymentRequest asks finance to release a payment to a vendor. Its request
// number prefix follows the request type (CR, MCR, PCR).
type PaymentRequest struct {
	shared.BaseEntity
	RequestNumber string
	RequestType   string
	VendorID      *uuid.UUID
	CostCenterID  *uuid.UUID
	DateNeeded    *time.Time
	ChargeTo      string
	Remarks       string
	UpdatedByID   *uuid.UUID
}

// NewPaymentRequest creates a payment request carrying an allocated number.
func NewPaymentRequest(requestNumber, requestType string, now time.Time) (*PaymentRequest, error) {
	if strings.TrimSpace(requestNumber) == "" {
		return nil, shared.NewDomainError("INVALID_REQUEST_NUMBER", "Request number is required")
	}
	if strings.TrimSpace(requestType) == "" {
		return nil, shared.NewDomainError("INVALID_REQUEST_TYPE", "Request type is required")
	}

	return &PaymentRequest{
		BaseEntity:    shared.NewBaseEntity(now),
		RequestNumber: requestNumber,
		RequestType:   requestType,
	}, nil
}

// Renumber moves the request to a new request type under a freshly allocated
// number. The previous number is dropped, never reused.
func (p *PaymentRequest) Renumber(requestNumber, requestType string, now time.Time) error {
	if strings.TrimSpace(requestNumber) == "" {
		return shared.NewDomainError("INVALID_REQUEST_NUMBER", "Request number is required")
	}
	if requestNumber == p.RequestNumber {
		return shared.NewDomainError("INVALID_STATE", "Renumbering must issue a new request number")
	}
	p.RequestNumber = requestNumber
	p.RequestType = requestType
	p.Touch(now)
	return nil
}

// ApplyDetails overwrites the descriptive fields that are set.
func (p *PaymentRequest) ApplyDetails(d PaymentRequestDetails, now time.Time) {
	if d.VendorID != nil {
		p.VendorID = d.VendorID
	}
	if d.CostCenterID != nil {
		p.CostCenterID = d.CostCenterID
	}
	if d.DateNeeded != nil {
		p.DateNeeded = d.DateNeeded
	}
	if d.ChargeTo != nil {
		p.ChargeTo = strings.TrimSpace(*d.ChargeTo)
	}
	if d.Remarks != nil {
		p.Remarks = strings.TrimSpace(*d.Remarks)
	}
	if d.UpdatedByID != nil {
		p.UpdatedByID = d.UpdatedByID
	}
	p.Touch(now)
}

// PaymentRequestDetails carries optional descriptive fields; nil leaves a
// field unchanged.
type PaymentRequestDetails struct {
	VendorID     *uuid.UUID
	CostCenterID *uuid.UUID
	DateNeeded   *time.Time
	ChargeTo     *string
	Remarks      *string
	UpdatedByID  *uuid.UUID
}
