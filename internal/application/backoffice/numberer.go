package backoffice

import (
	"context"
	"fmt"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Mode selects how a record's number is tied to the record's own write.
type Mode string

const (
	// ModeCoTransactional allocates inside the record transaction; the counter
	// advance and the insert commit or roll back together. It requires the
	// counters to live in the record database.
	ModeCoTransactional Mode = "co_transactional"
	// ModeIndependent allocates in its own transaction first and persists the
	// record afterwards. A failed persist leaves a gap.
	ModeIndependent Mode = "independent"
)

// persistFunc writes a record carrying number using repos.
type persistFunc func(ctx context.Context, repos TransactionalRepositories, number numbering.AllocatedNumber) error

// numberer issues numbers for record writes in the configured mode.
type numberer struct {
	allocator *appnumbering.Allocator
	scope     TransactionScope
	mode      Mode
	logger    *zap.Logger
}

func newNumberer(allocator *appnumbering.Allocator, scope TransactionScope, mode Mode, l *zap.Logger) *numberer {
	if mode == "" {
		mode = ModeCoTransactional
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &numberer{allocator: allocator, scope: scope, mode: mode, logger: l}
}

// withNumber allocates a number in key's partition and runs persist with it.
// The number is never persisted before it has been allocated.
func (n *numberer) withNumber(ctx context.Context, key numbering.PartitionKey, persist persistFunc) (numbering.AllocatedNumber, error) {
	if n.mode == ModeIndependent {
		number, err := n.allocator.AllocateKey(ctx, key)
		if err != nil {
			return numbering.AllocatedNumber{}, err
		}
		err = n.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
			return persist(ctx, repos, number)
		})
		if err != nil {
			logger.WithLogger(ctx, logger.FromContextOr(ctx, n.logger)).Warn("record not persisted, number left as a gap",
				zap.String("display", number.Display),
				zap.Error(err),
			)
			return numbering.AllocatedNumber{}, err
		}
		return number, nil
	}

	// The whole record transaction runs under the hold deadline, since the
	// counter row stays locked until it commits.
	return n.allocator.AllocateWithin(ctx, key, func(holdCtx context.Context, issue appnumbering.IssueFunc) error {
		return n.scope.Execute(holdCtx, func(ctx context.Context, repos TransactionalRepositories) error {
			store := repos.SequenceStore()
			if store == nil {
				return fmt.Errorf("%w: record transaction has no sequence store", shared.ErrInvalidState)
			}
			issued, err := issue(ctx, store)
			if err != nil {
				return err
			}
			return persist(ctx, repos, issued)
		})
	})
}

// Option configures a record service.
type Option func(*options)

type options struct {
	mode   Mode
	logger *zap.Logger
}

// WithMode sets how numbers are tied to record writes.
func WithMode(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithLogger sets the base logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildNumberer(allocator *appnumbering.Allocator, scope TransactionScope, opts []Option) *numberer {
	o := options{mode: ModeCoTransactional}
	for _, opt := range opts {
		opt(&o)
	}
	return newNumberer(allocator, scope, o.mode, o.logger)
}
