package backoffice

import (
	"context"
	"errors"
	"fmt"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/finance"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// PaymentRequestService creates and updates payment requests. The request
// number prefix follows the request type, so a type change renumbers.
type PaymentRequestService struct {
	scope    TransactionScope
	numberer *numberer
}

// NewPaymentRequestService creates a new PaymentRequestService
func NewPaymentRequestService(allocator *appnumbering.Allocator, scope TransactionScope, opts ...Option) *PaymentRequestService {
	return &PaymentRequestService{
		scope:    scope,
		numberer: buildNumberer(allocator, scope, opts),
	}
}

// Create creates a payment request numbered under its request type
func (s *PaymentRequestService) Create(ctx context.Context, req CreatePaymentRequestRequest) (*PaymentRequestResponse, error) {
	requestType := numbering.NormalizeRequestType(req.RequestType)
	key, err := s.resolve(requestType)
	if err != nil {
		return nil, err
	}

	now := s.numberer.allocator.Clock().Now()
	var created *finance.PaymentRequest
	_, err = s.numberer.withNumber(ctx, key, func(ctx context.Context, repos TransactionalRepositories, number numbering.AllocatedNumber) error {
		p, err := finance.NewPaymentRequest(number.Display, requestType, now)
		if err != nil {
			return err
		}
		p.VendorID = req.VendorID
		p.CostCenterID = req.CostCenterID
		p.DateNeeded = req.DateNeeded
		p.ApplyDetails(finance.PaymentRequestDetails{
			ChargeTo:    &req.ChargeTo,
			Remarks:     &req.Remarks,
			UpdatedByID: req.UpdatedByID,
		}, now)
		if err := repos.PaymentRequests().Create(ctx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToPaymentRequestResponse(created)
	return &response, nil
}

// errTypeMoved reports that the locked record's request type no longer
// matches the path the update took.
var errTypeMoved = errors.New("request type changed concurrently")

const maxUpdateAttempts = 3

// Update applies a partial update. When RequestType changes, a fresh number
// is allocated under the new type's partition and the old one is discarded.
// Whether the type changes is decided against the locked record.
func (s *PaymentRequestService) Update(ctx context.Context, id uuid.UUID, req UpdatePaymentRequestRequest) (*PaymentRequestResponse, error) {
	var key numbering.PartitionKey
	var requestType string
	if req.RequestType != nil {
		requestType = numbering.NormalizeRequestType(*req.RequestType)
		k, err := s.resolve(requestType)
		if err != nil {
			return nil, err
		}
		key = k
	}
	now := s.numberer.allocator.Clock().Now()

	var updated *finance.PaymentRequest
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		updated, err = s.updateInPlace(ctx, id, req, requestType, now)
		if !errors.Is(err, errTypeMoved) {
			break
		}
		updated, err = s.renumber(ctx, id, key, req, requestType, now)
		if !errors.Is(err, errTypeMoved) {
			break
		}
	}
	if errors.Is(err, errTypeMoved) {
		return nil, fmt.Errorf("%w: payment request %s: %w", shared.ErrInvalidState, id, err)
	}
	if err != nil {
		return nil, err
	}

	response := ToPaymentRequestResponse(updated)
	return &response, nil
}

// updateInPlace applies details without touching the number. It fails with
// errTypeMoved when requestType is set and differs from the stored type.
func (s *PaymentRequestService) updateInPlace(ctx context.Context, id uuid.UUID, req UpdatePaymentRequestRequest, requestType string, now time.Time) (*finance.PaymentRequest, error) {
	var updated *finance.PaymentRequest
	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		p, err := repos.PaymentRequests().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.RequestType != nil && p.RequestType != requestType {
			return errTypeMoved
		}
		p.ApplyDetails(req.details(), now)
		if err := repos.PaymentRequests().Save(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	return updated, err
}

// renumber moves the record to requestType under a number from key. It fails
// with errTypeMoved when the stored type already equals requestType; in
// co-transactional mode the counter advance rolls back with it.
func (s *PaymentRequestService) renumber(ctx context.Context, id uuid.UUID, key numbering.PartitionKey, req UpdatePaymentRequestRequest, requestType string, now time.Time) (*finance.PaymentRequest, error) {
	var updated *finance.PaymentRequest
	_, err := s.numberer.withNumber(ctx, key, func(ctx context.Context, repos TransactionalRepositories, number numbering.AllocatedNumber) error {
		p, err := repos.PaymentRequests().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.RequestType == requestType {
			return errTypeMoved
		}
		if err := p.Renumber(number.Display, requestType, now); err != nil {
			return err
		}
		p.ApplyDetails(req.details(), now)
		if err := repos.PaymentRequests().Save(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	return updated, err
}

// GetByID retrieves a payment request by ID
func (s *PaymentRequestService) GetByID(ctx context.Context, id uuid.UUID) (*PaymentRequestResponse, error) {
	var response PaymentRequestResponse
	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		p, err := repos.PaymentRequests().FindByID(ctx, id)
		if err != nil {
			return err
		}
		response = ToPaymentRequestResponse(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (s *PaymentRequestService) resolve(requestType string) (numbering.PartitionKey, error) {
	if requestType == "" {
		return numbering.PartitionKey{}, fmt.Errorf("%w: request type is required", shared.ErrInvalidInput)
	}
	return s.numberer.allocator.Resolve(numbering.RecordTypePaymentRequest, numbering.Fields{RequestType: requestType})
}
