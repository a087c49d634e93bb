package partner

import (
	"context"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/google/uuid"
)

// CustomerRepository persists customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByCode(ctx context.Context, code string) (*Customer, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	// ListNumbers returns every code issued in key's partition.
	ListNumbers(ctx context.Context, key numbering.PartitionKey) ([]string, error)
}
