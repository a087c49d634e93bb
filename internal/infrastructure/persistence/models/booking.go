package models

import (
	"github.com/aglc/backoffice/internal/domain/booking"
	"github.com/google/uuid"
)

// BookingModel is the persistence model for the Booking domain entity.
type BookingModel struct {
	BaseModel
	BookingNumber string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_bookings_number"`
	CustomerID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Remarks       string     `gorm:"type:text"`
	UpdatedByID   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (BookingModel) TableName() string {
	return "bookings"
}

// ToDomain converts the persistence model to a domain Booking entity.
func (m *BookingModel) ToDomain() *booking.Booking {
	return &booking.Booking{
		BaseEntity:    m.BaseModel.ToDomain(),
		BookingNumber: m.BookingNumber,
		CustomerID:    m.CustomerID,
		Remarks:       m.Remarks,
		UpdatedByID:   m.UpdatedByID,
	}
}

// BookingModelFromDomain creates a new persistence model from a domain Booking entity.
func BookingModelFromDomain(b *booking.Booking) *BookingModel {
	m := &BookingModel{
		BookingNumber: b.BookingNumber,
		CustomerID:    b.CustomerID,
		Remarks:       b.Remarks,
		UpdatedByID:   b.UpdatedByID,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}
