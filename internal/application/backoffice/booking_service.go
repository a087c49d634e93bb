package backoffice

import (
	"context"
	"fmt"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/booking"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// BookingService creates bookings and assigns their booking numbers
type BookingService struct {
	scope    TransactionScope
	numberer *numberer
}

// NewBookingService creates a new BookingService
func NewBookingService(allocator *appnumbering.Allocator, scope TransactionScope, opts ...Option) *BookingService {
	return &BookingService{
		scope:    scope,
		numberer: buildNumberer(allocator, scope, opts),
	}
}

// Create creates a booking for an existing customer
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*BookingResponse, error) {
	if req.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer ID is required", shared.ErrInvalidInput)
	}
	key, err := s.numberer.allocator.Resolve(numbering.RecordTypeBooking, numbering.Fields{})
	if err != nil {
		return nil, err
	}

	// Checked ahead of allocation so an unknown customer does not burn a number.
	err = s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		exists, err := repos.Customers().ExistsByID(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: customer %s", shared.ErrNotFound, req.CustomerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.numberer.allocator.Clock().Now()
	var created *booking.Booking
	_, err = s.numberer.withNumber(ctx, key, func(ctx context.Context, repos TransactionalRepositories, number numbering.AllocatedNumber) error {
		b, err := booking.NewBooking(number.Display, req.CustomerID, now)
		if err != nil {
			return err
		}
		b.SetRemarks(req.Remarks, req.UpdatedByID)
		if err := repos.Bookings().Create(ctx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToBookingResponse(created)
	return &response, nil
}

// GetByID retrieves a booking by ID
func (s *BookingService) GetByID(ctx context.Context, id uuid.UUID) (*BookingResponse, error) {
	var response BookingResponse
	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		b, err := repos.Bookings().FindByID(ctx, id)
		if err != nil {
			return err
		}
		response = ToBookingResponse(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}
