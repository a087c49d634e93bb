package models

import (
	"github.com/aglc/backoffice/internal/domain/partner"
	"github.com/google/uuid"
)

// CustomerModel is the persistence model for the Customer domain entity.
type CustomerModel struct {
	BaseModel
	Code        string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_customers_code"`
	Name        string     `gorm:"type:varchar(200);not null"`
	Address     string     `gorm:"type:text"`
	TIN         string     `gorm:"column:tin;type:varchar(50)"`
	IsActive    bool       `gorm:"not null"`
	UpdatedByID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer entity.
func (m *CustomerModel) ToDomain() *partner.Customer {
	return &partner.Customer{
		BaseEntity:  m.BaseModel.ToDomain(),
		Code:        m.Code,
		Name:        m.Name,
		Address:     m.Address,
		TIN:         m.TIN,
		IsActive:    m.IsActive,
		UpdatedByID: m.UpdatedByID,
	}
}

// FromDomain populates the persistence model from a domain Customer entity.
func (m *CustomerModel) FromDomain(c *partner.Customer) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Code = c.Code
	m.Name = c.Name
	m.Address = c.Address
	m.TIN = c.TIN
	m.IsActive = c.IsActive
	m.UpdatedByID = c.UpdatedByID
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer entity.
func CustomerModelFromDomain(c *partner.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}
