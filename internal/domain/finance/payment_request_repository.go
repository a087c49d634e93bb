package finance

import (
	"context"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/google/uuid"
)

// PaymentRequestRepository persists payment requests.
type PaymentRequestRepository interface {
	Create(ctx context.Context, p *PaymentRequest) error
	Save(ctx context.Context, p *PaymentRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentRequest, error)
	// FindByIDForUpdate loads the request and locks its row for the rest of
	// the transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PaymentRequest, error)
	FindByNumber(ctx context.Context, requestNumber string) (*PaymentRequest, error)
	ListNumbers(ctx context.Context, key numbering.PartitionKey) ([]string, error)
}
