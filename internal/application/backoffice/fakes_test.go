package backoffice_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/aglc/backoffice/internal/application/backoffice"
	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/booking"
	"github.com/aglc/backoffice/internal/domain/finance"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/partner"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
)

// recordScope is an in-memory record database. Writes are staged per
// transaction and become visible on commit. In co-transactional mode it
// shares the counter store's transaction, so a failed record write also
// discards the counter advance.
type recordScope struct {
	counters *memory.SequenceStore
	shared   bool

	mu        sync.Mutex
	customers map[uuid.UUID]partner.Customer
	bookings  map[uuid.UUID]booking.Booking
	payments  map[uuid.UUID]finance.PaymentRequest

	// failWrites makes every record write fail
	failWrites error
	// beforeLock, when set, runs once ahead of the next row lock on a
	// payment request, standing in for a writer that committed first
	beforeLock func(p *finance.PaymentRequest)
}

func newRecordScope(counters *memory.SequenceStore, shared bool) *recordScope {
	return &recordScope{
		counters:  counters,
		shared:    shared,
		customers: map[uuid.UUID]partner.Customer{},
		bookings:  map[uuid.UUID]booking.Booking{},
		payments:  map[uuid.UUID]finance.PaymentRequest{},
	}
}

func (s *recordScope) Execute(ctx context.Context, fn func(ctx context.Context, repos backoffice.TransactionalRepositories) error) error {
	return s.counters.Execute(ctx, func(ctx context.Context, counterRepos appnumbering.TransactionalRepositories) error {
		tx := &recordTx{
			scope:     s,
			customers: map[uuid.UUID]partner.Customer{},
			bookings:  map[uuid.UUID]booking.Booking{},
			payments:  map[uuid.UUID]finance.PaymentRequest{},
		}
		if s.shared {
			tx.seq = counterRepos.SequenceStore()
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, c := range tx.customers {
			s.customers[id] = c
		}
		for id, b := range tx.bookings {
			s.bookings[id] = b
		}
		for id, p := range tx.payments {
			s.payments[id] = p
		}
		return nil
	})
}

func (s *recordScope) customerCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c.Code)
	}
	sort.Strings(out)
	return out
}

func (s *recordScope) requestNumbers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p.RequestNumber)
	}
	sort.Strings(out)
	return out
}

type recordTx struct {
	scope     *recordScope
	seq       numbering.SequenceStore
	customers map[uuid.UUID]partner.Customer
	bookings  map[uuid.UUID]booking.Booking
	payments  map[uuid.UUID]finance.PaymentRequest
}

func (t *recordTx) Customers() partner.CustomerRepository              { return customerRepo{t} }
func (t *recordTx) Bookings() booking.BookingRepository                { return bookingRepo{t} }
func (t *recordTx) PaymentRequests() finance.PaymentRequestRepository { return paymentRepo{t} }
func (t *recordTx) SequenceStore() numbering.SequenceStore             { return t.seq }

func (t *recordTx) customer(id uuid.UUID) (partner.Customer, bool) {
	if c, ok := t.customers[id]; ok {
		return c, true
	}
	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()
	c, ok := t.scope.customers[id]
	return c, ok
}

func (t *recordTx) payment(id uuid.UUID) (finance.PaymentRequest, bool) {
	if p, ok := t.payments[id]; ok {
		return p, true
	}
	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()
	p, ok := t.scope.payments[id]
	return p, ok
}

type customerRepo struct{ tx *recordTx }

func (r customerRepo) Create(_ context.Context, c *partner.Customer) error {
	if r.tx.scope.failWrites != nil {
		return r.tx.scope.failWrites
	}
	r.tx.customers[c.ID] = *c
	return nil
}

func (r customerRepo) FindByID(_ context.Context, id uuid.UUID) (*partner.Customer, error) {
	c, ok := r.tx.customer(id)
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (r customerRepo) FindByCode(context.Context, string) (*partner.Customer, error) {
	return nil, errors.New("not used")
}

func (r customerRepo) ExistsByID(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.tx.customer(id)
	return ok, nil
}

func (r customerRepo) ListNumbers(_ context.Context, key numbering.PartitionKey) ([]string, error) {
	var out []string
	for _, code := range r.tx.scope.customerCodes() {
		if strings.HasPrefix(code, key.Prefix+key.Period) {
			out = append(out, code)
		}
	}
	return out, nil
}

type bookingRepo struct{ tx *recordTx }

func (r bookingRepo) Create(_ context.Context, b *booking.Booking) error {
	if r.tx.scope.failWrites != nil {
		return r.tx.scope.failWrites
	}
	r.tx.bookings[b.ID] = *b
	return nil
}

func (r bookingRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	if b, ok := r.tx.bookings[id]; ok {
		return &b, nil
	}
	r.tx.scope.mu.Lock()
	defer r.tx.scope.mu.Unlock()
	b, ok := r.tx.scope.bookings[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (r bookingRepo) FindByNumber(context.Context, string) (*booking.Booking, error) {
	return nil, errors.New("not used")
}

func (r bookingRepo) ListNumbers(context.Context, numbering.PartitionKey) ([]string, error) {
	return nil, errors.New("not used")
}

type paymentRepo struct{ tx *recordTx }

func (r paymentRepo) Create(_ context.Context, p *finance.PaymentRequest) error {
	if r.tx.scope.failWrites != nil {
		return r.tx.scope.failWrites
	}
	r.tx.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Save(_ context.Context, p *finance.PaymentRequest) error {
	if r.tx.scope.failWrites != nil {
		return r.tx.scope.failWrites
	}
	if _, ok := r.tx.payment(p.ID); !ok {
		return shared.ErrNotFound
	}
	r.tx.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) FindByID(_ context.Context, id uuid.UUID) (*finance.PaymentRequest, error) {
	p, ok := r.tx.payment(id)
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r paymentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.PaymentRequest, error) {
	s := r.tx.scope
	s.mu.Lock()
	if hook := s.beforeLock; hook != nil {
		s.beforeLock = nil
		if p, ok := s.payments[id]; ok {
			hook(&p)
			s.payments[id] = p
		}
	}
	s.mu.Unlock()
	return r.FindByID(ctx, id)
}

func (r paymentRepo) FindByNumber(context.Context, string) (*finance.PaymentRequest, error) {
	return nil, errors.New("not used")
}

func (r paymentRepo) ListNumbers(context.Context, numbering.PartitionKey) ([]string, error) {
	return nil, errors.New("not used")
}
