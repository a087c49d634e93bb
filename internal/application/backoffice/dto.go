package backoffice

import (
	"time"

	"github.com/aglc/backoffice/internal/domain/booking"
	"github.com/aglc/backoffice/internal/domain/finance"
	"github.com/aglc/backoffice/internal/domain/partner"
	"github.com/google/uuid"
)

// =============================================================================
// Customer DTOs
// =============================================================================

// CreateCustomerRequest represents a request to create a new customer
type CreateCustomerRequest struct {
	Name        string     `json:"name" binding:"required,min=1,max=200"`
	Address     string     `json:"address" binding:"max=500"`
	TIN         string     `json:"tin" binding:"max=50"`
	IsActive    *bool      `json:"is_active"`
	UpdatedByID *uuid.UUID `json:"-"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	TIN       string    `json:"tin,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToCustomerResponse converts a domain Customer to CustomerResponse
func ToCustomerResponse(c *partner.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Code:      c.Code,
		Name:      c.Name,
		Address:   c.Address,
		TIN:       c.TIN,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// =============================================================================
// Booking DTOs
// =============================================================================

// CreateBookingRequest represents a request to create a new booking
type CreateBookingRequest struct {
	CustomerID  uuid.UUID  `json:"customer_id" binding:"required"`
	Remarks     string     `json:"remarks"`
	UpdatedByID *uuid.UUID `json:"-"`
}

// BookingResponse represents a booking in API responses
type BookingResponse struct {
	ID            uuid.UUID `json:"id"`
	BookingNumber string    `json:"booking_number"`
	CustomerID    uuid.UUID `json:"customer_id"`
	Remarks       string    `json:"remarks,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToBookingResponse converts a domain Booking to BookingResponse
func ToBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		BookingNumber: b.BookingNumber,
		CustomerID:    b.CustomerID,
		Remarks:       b.Remarks,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// =============================================================================
// Payment Request DTOs
// =============================================================================

// CreatePaymentRequestRequest represents a request to create a payment request
type CreatePaymentRequestRequest struct {
	RequestType  string     `json:"request_type" binding:"required"`
	VendorID     *uuid.UUID `json:"vendor_id"`
	CostCenterID *uuid.UUID `json:"cost_center_id"`
	DateNeeded   *time.Time `json:"date_needed"`
	ChargeTo     string     `json:"charge_to" binding:"max=200"`
	Remarks      string     `json:"remarks"`
	UpdatedByID  *uuid.UUID `json:"-"`
}

// UpdatePaymentRequestRequest represents a partial update; nil fields are kept.
// Changing RequestType renumbers the request.
type UpdatePaymentRequestRequest struct {
	RequestType  *string    `json:"request_type"`
	VendorID     *uuid.UUID `json:"vendor_id"`
	CostCenterID *uuid.UUID `json:"cost_center_id"`
	DateNeeded   *time.Time `json:"date_needed"`
	ChargeTo     *string    `json:"charge_to" binding:"omitempty,max=200"`
	Remarks      *string    `json:"remarks"`
	UpdatedByID  *uuid.UUID `json:"-"`
}

func (r UpdatePaymentRequestRequest) details() finance.PaymentRequestDetails {
	return finance.PaymentRequestDetails{
		VendorID:     r.VendorID,
		CostCenterID: r.CostCenterID,
		DateNeeded:   r.DateNeeded,
		ChargeTo:     r.ChargeTo,
		Remarks:      r.Remarks,
		UpdatedByID:  r.UpdatedByID,
	}
}

// PaymentRequestResponse represents a payment request in API responses
type PaymentRequestResponse struct {
	ID            uuid.UUID  `json:"id"`
	RequestNumber string     `json:"request_number"`
	RequestType   string     `json:"request_type"`
	VendorID      *uuid.UUID `json:"vendor_id,omitempty"`
	CostCenterID  *uuid.UUID `json:"cost_center_id,omitempty"`
	DateNeeded    *time.Time `json:"date_needed,omitempty"`
	ChargeTo      string     `json:"charge_to,omitempty"`
	Remarks       string     `json:"remarks,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ToPaymentRequestResponse converts a domain PaymentRequest to PaymentRequestResponse
func ToPaymentRequestResponse(p *finance.PaymentRequest) PaymentRequestResponse {
	return PaymentRequestResponse{
		ID:            p.ID,
		RequestNumber: p.RequestNumber,
		RequestType:   p.RequestType,
		VendorID:      p.VendorID,
		CostCenterID:  p.CostCenterID,
		DateNeeded:    p.DateNeeded,
		ChargeTo:      p.ChargeTo,
		Remarks:       p.Remarks,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
