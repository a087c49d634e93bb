package numbering

import (
	"context"

	"github.com/aglc/backoffice/internal/domain/numbering"
)

// TransactionScope provides transactional access to the sequence store.
// Every store operation made inside fn belongs to one transaction which is
// committed when fn returns nil and rolled back otherwise.
//
// Optimistic stores may run fn more than once when a concurrent writer wins
// the race; fn must not have side effects outside the repositories it is given.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to one transaction.
type TransactionalRepositories interface {
	// SequenceStore returns the counter store scoped to the current transaction
	SequenceStore() numbering.SequenceStore
}

// NumberHistory lists display numbers already issued for a partition, used
// to seed counters that predate the allocator.
type NumberHistory interface {
	ListNumbers(ctx context.Context, key numbering.PartitionKey) ([]string, error)
}

// Metrics receives allocation outcomes.
type Metrics interface {
	RecordAllocation(ctx context.Context, key numbering.PartitionKey, outcome string, elapsed float64)
	RecordBootstrap(ctx context.Context, key numbering.PartitionKey, advanced bool)
}

// Allocation outcomes reported to Metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "allocation_failed"
	OutcomeUnavailable = "store_unavailable"
	OutcomeRejected    = "rejected"
)

type noopMetrics struct{}

func (noopMetrics) RecordAllocation(context.Context, numbering.PartitionKey, string, float64) {}
func (noopMetrics) RecordBootstrap(context.Context, numbering.PartitionKey, bool)             {}
