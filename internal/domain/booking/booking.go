// Package booking holds the booking record. A booking is identified to
// people by its booking number (AGLC2025xxxxx).
package booking

import (
	"strings"
	"time"

	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Booking is a freight booking made for a customer.
type Booking struct {
	shared.BaseEntity
	BookingNumber string
	CustomerID    uuid.UUID
	Remarks       string
	UpdatedByID   *uuid.UUID
}

// NewBooking creates a booking carrying an allocated booking number.
func NewBooking(bookingNumber string, customerID uuid.UUID, now time.Time) (*Booking, error) {
	if strings.TrimSpace(bookingNumber) == "" {
		return nil, shared.NewDomainError("INVALID_BOOKING_NUMBER", "Booking number is required")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID is required")
	}

	return &Booking{
		BaseEntity:    shared.NewBaseEntity(now),
		BookingNumber: bookingNumber,
		CustomerID:    customerID,
	}, nil
}

// SetRemarks replaces the free-text remarks.
func (b *Booking) SetRemarks(remarks string, updatedBy *uuid.UUID) {
	b.Remarks = strings.TrimSpace(remarks)
	b.UpdatedByID = updatedBy
}
