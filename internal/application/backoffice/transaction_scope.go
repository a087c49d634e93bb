// Package backoffice creates the records that carry sequence numbers:
// customers, bookings and payment requests.
package backoffice

import (
	"context"

	"github.com/aglc/backoffice/internal/domain/booking"
	"github.com/aglc/backoffice/internal/domain/finance"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/partner"
)

// TransactionScope provides transactional access to the record repositories.
// All repository operations made inside fn are committed or rolled back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to one transaction.
type TransactionalRepositories interface {
	Customers() partner.CustomerRepository
	Bookings() booking.BookingRepository
	PaymentRequests() finance.PaymentRequestRepository
	// SequenceStore returns the counter store sharing this transaction, or
	// nil when counters live in a different system.
	SequenceStore() numbering.SequenceStore
}
