package models

import (
	"time"

	"github.com/aglc/backoffice/internal/domain/finance"
	"github.com/google/uuid"
)

// PaymentRequestModel is the persistence model for the PaymentRequest domain entity.
type PaymentRequestModel struct {
	BaseModel
	RequestNumber string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_payment_requests_number"`
	RequestType   string     `gorm:"type:varchar(50);not null"`
	VendorID      *uuid.UUID `gorm:"type:uuid;index"`
	CostCenterID  *uuid.UUID `gorm:"type:uuid"`
	DateNeeded    *time.Time `gorm:"type:date"`
	ChargeTo      string     `gorm:"type:varchar(200)"`
	Remarks       string     `gorm:"type:text"`
	UpdatedByID   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentRequestModel) TableName() string {
	return "payment_requests"
}

// ToDomain converts the persistence model to a domain PaymentRequest entity.
func (m *PaymentRequestModel) ToDomain() *finance.PaymentRequest {
	return &finance.PaymentRequest{
		BaseEntity:    m.BaseModel.ToDomain(),
		RequestNumber: m.RequestNumber,
		RequestType:   m.RequestType,
		VendorID:      m.VendorID,
		CostCenterID:  m.CostCenterID,
		DateNeeded:    m.DateNeeded,
		ChargeTo:      m.ChargeTo,
		Remarks:       m.Remarks,
		UpdatedByID:   m.UpdatedByID,
	}
}

// FromDomain populates the persistence model from a domain PaymentRequest entity.
func (m *PaymentRequestModel) FromDomain(p *finance.PaymentRequest) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.RequestNumber = p.RequestNumber
	m.RequestType = p.RequestType
	m.VendorID = p.VendorID
	m.CostCenterID = p.CostCenterID
	m.DateNeeded = p.DateNeeded
	m.ChargeTo = p.ChargeTo
	m.Remarks = p.Remarks
	m.UpdatedByID = p.UpdatedByID
}

// PaymentRequestModelFromDomain creates a new persistence model from a domain PaymentRequest entity.
func PaymentRequestModelFromDomain(p *finance.PaymentRequest) *PaymentRequestModel {
	m := &PaymentRequestModel{}
	m.FromDomain(p)
	return m
}
