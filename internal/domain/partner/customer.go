package partner

import (
	"strings"
	"time"

	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Customer is a back-office customer. Code is its sequence number (C2025xxxxx)
// and never changes after creation.
type Customer struct {
	shared.BaseEntity
	Code        string
	Name        string
	Address     string
	TIN         string // tax identification number
	IsActive    bool
	UpdatedByID *uuid.UUID
}

// NewCustomer creates a customer carrying an allocated code.
func NewCustomer(code, name string, now time.Time) (*Customer, error) {
	if strings.TrimSpace(code) == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Customer code is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name is required")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot exceed 200 characters")
	}

	return &Customer{
		BaseEntity: shared.NewBaseEntity(now),
		Code:       code,
		Name:       name,
		IsActive:   true,
	}, nil
}

// SetDetails sets the optional descriptive fields.
func (c *Customer) SetDetails(address, tin string, isActive bool, updatedBy *uuid.UUID) {
	c.Address = strings.TrimSpace(address)
	c.TIN = strings.TrimSpace(tin)
	c.IsActive = isActive
	c.UpdatedByID = updatedBy
}
