package backoffice

import (
	"context"
	"fmt"
	"strings"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/partner"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerService creates customers and assigns their codes
type CustomerService struct {
	scope    TransactionScope
	numberer *numberer
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(allocator *appnumbering.Allocator, scope TransactionScope, opts ...Option) *CustomerService {
	return &CustomerService{
		scope:    scope,
		numberer: buildNumberer(allocator, scope, opts),
	}
}

// Create creates a new customer with the next code of the current year
func (s *CustomerService) Create(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", shared.ErrInvalidInput)
	}
	key, err := s.numberer.allocator.Resolve(numbering.RecordTypeCustomer, numbering.Fields{})
	if err != nil {
		return nil, err
	}

	now := s.numberer.allocator.Clock().Now()
	var created *partner.Customer
	_, err = s.numberer.withNumber(ctx, key, func(ctx context.Context, repos TransactionalRepositories, number numbering.AllocatedNumber) error {
		customer, err := partner.NewCustomer(number.Display, req.Name, now)
		if err != nil {
			return err
		}
		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}
		customer.SetDetails(req.Address, req.TIN, isActive, req.UpdatedByID)
		if err := repos.Customers().Create(ctx, customer); err != nil {
			return err
		}
		created = customer
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToCustomerResponse(created)
	return &response, nil
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	var response CustomerResponse
	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		customer, err := repos.Customers().FindByID(ctx, id)
		if err != nil {
			return err
		}
		response = ToCustomerResponse(customer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}
