package persistence

import (
	"context"
	"errors"

	"github.com/aglc/backoffice/internal/domain/booking"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBookingRepository implements BookingRepository using GORM
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// Create inserts a new booking
func (r *GormBookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	if err := r.db.WithContext(ctx).Create(models.BookingModelFromDomain(b)).Error; err != nil {
		return translateRecordError(err)
	}
	return nil
}

// FindByID finds a booking by its ID
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	var model models.BookingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a booking by its booking number
func (r *GormBookingRepository) FindByNumber(ctx context.Context, bookingNumber string) (*booking.Booking, error) {
	var model models.BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", bookingNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListNumbers returns every booking number issued in key's partition
func (r *GormBookingRepository) ListNumbers(ctx context.Context, key numbering.PartitionKey) ([]string, error) {
	return listNumbers(ctx, r.db, &models.BookingModel{}, "booking_number", key)
}

// Ensure GormBookingRepository implements BookingRepository
var _ booking.BookingRepository = (*GormBookingRepository)(nil)
