package numbering

import "context"

// SequenceStore is the durable counter state for all partitions. A store
// value is bound to one transaction; it is only obtained from a transaction
// scope and must not be used after that transaction resolves.
type SequenceStore interface {
	// GetForUpdate returns the current counter for key and takes an exclusive
	// hold on it until the transaction commits or rolls back. A key that was
	// never seen reports (0, false) and is reserved by the call.
	GetForUpdate(ctx context.Context, key PartitionKey) (uint64, bool, error)

	// Set stages value as the counter for key. The key must be held by this
	// transaction.
	Set(ctx context.Context, key PartitionKey, value uint64) error
}

// CounterReader lists persisted counters outside any allocation.
type CounterReader interface {
	ListCounters(ctx context.Context, prefix string) ([]SequenceCounter, error)
	GetCounter(ctx context.Context, key PartitionKey) (*SequenceCounter, error)
}
