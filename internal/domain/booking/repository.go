package booking

import (
	"context"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/google/uuid"
)

// BookingRepository persists bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	FindByNumber(ctx context.Context, bookingNumber string) (*Booking, error)
	ListNumbers(ctx context.Context, key numbering.PartitionKey) ([]string, error)
}
