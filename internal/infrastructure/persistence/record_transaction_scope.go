package persistence

import (
	"context"

	"github.com/aglc/backoffice/internal/application/backoffice"
	"github.com/aglc/backoffice/internal/domain/booking"
	"github.com/aglc/backoffice/internal/domain/finance"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/partner"
	"gorm.io/gorm"
)

// GormRecordScope implements the record workflows' TransactionScope. When
// shareCounters is set the sequence counters live in the same database and
// each transaction also exposes a sequence store bound to it.
type GormRecordScope struct {
	db            *gorm.DB
	shareCounters bool
}

// NewGormRecordScope creates a new GormRecordScope.
func NewGormRecordScope(db *gorm.DB, shareCounters bool) *GormRecordScope {
	return &GormRecordScope{db: db, shareCounters: shareCounters}
}

// Execute runs fn within a database transaction, committing when it returns nil.
func (s *GormRecordScope) Execute(ctx context.Context, fn func(ctx context.Context, repos backoffice.TransactionalRepositories) error) error {
	if !s.shareCounters {
		return translateError(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, &recordRepos{tx: tx})
		}))
	}
	return translateError(runInTransaction(ctx, s.db, func(tx *gorm.DB, store *gormSequenceStore) error {
		return fn(ctx, &recordRepos{tx: tx, store: store})
	}))
}

// recordRepos provides the record repositories within a transaction.
type recordRepos struct {
	tx    *gorm.DB
	store *gormSequenceStore
}

// Customers returns the customer repository scoped to the current transaction.
func (r *recordRepos) Customers() partner.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

// Bookings returns the booking repository scoped to the current transaction.
func (r *recordRepos) Bookings() booking.BookingRepository {
	return NewGormBookingRepository(r.tx)
}

// PaymentRequests returns the payment request repository scoped to the current transaction.
func (r *recordRepos) PaymentRequests() finance.PaymentRequestRepository {
	return NewGormPaymentRequestRepository(r.tx)
}

// SequenceStore returns the counter store sharing this transaction, if any.
func (r *recordRepos) SequenceStore() numbering.SequenceStore {
	if r.store == nil {
		return nil
	}
	return r.store
}

// Ensure GormRecordScope implements TransactionScope
var _ backoffice.TransactionScope = (*GormRecordScope)(nil)

// Ensure recordRepos implements TransactionalRepositories
var _ backoffice.TransactionalRepositories = (*recordRepos)(nil)
