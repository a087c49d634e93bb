// Package numbering allocates human-readable sequence numbers. The allocator
// keeps no counter state of its own: every allocation reads and advances the
// partition's counter under an exclusive hold taken through a TransactionScope.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/logger"
	"github.com/aglc/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultHoldTimeout bounds how long an allocation waits for a partition hold.
const DefaultHoldTimeout = 5 * time.Second

// Allocator issues sequence numbers.
type Allocator struct {
	scope       TransactionScope
	registry    *numbering.SchemeRegistry
	formatter   *numbering.Formatter
	clock       numbering.Clock
	holdTimeout time.Duration
	logger      *zap.Logger
	metrics     Metrics
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClock sets the clock used to derive partition periods.
func WithClock(clock numbering.Clock) Option {
	return func(a *Allocator) {
		a.clock = clock
	}
}

// WithHoldTimeout sets the maximum time an allocation may wait for its hold.
func WithHoldTimeout(d time.Duration) Option {
	return func(a *Allocator) {
		if d > 0 {
			a.holdTimeout = d
		}
	}
}

// WithLogger sets the base logger. Context loggers take precedence.
func WithLogger(l *zap.Logger) Option {
	return func(a *Allocator) {
		a.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(a *Allocator) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewAllocator creates an Allocator running against scope.
func NewAllocator(scope TransactionScope, registry *numbering.SchemeRegistry, opts ...Option) *Allocator {
	a := &Allocator{
		scope:       scope,
		registry:    registry,
		formatter:   numbering.NewFormatter(registry),
		clock:       numbering.SystemClock{},
		holdTimeout: DefaultHoldTimeout,
		logger:      zap.NewNop(),
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the scheme registry the allocator resolves against.
func (a *Allocator) Registry() *numbering.SchemeRegistry {
	return a.registry
}

// Formatter returns the formatter for the allocator's schemes.
func (a *Allocator) Formatter() *numbering.Formatter {
	return a.formatter
}

// Clock returns the allocator's clock.
func (a *Allocator) Clock() numbering.Clock {
	return a.clock
}

// HoldTimeout returns how long an allocation may wait for its hold.
func (a *Allocator) HoldTimeout() time.Duration {
	return a.holdTimeout
}

// Resolve computes the partition key a new record would be numbered under now.
func (a *Allocator) Resolve(recordType numbering.RecordType, fields numbering.Fields) (numbering.PartitionKey, error) {
	return a.registry.Resolve(recordType, fields, a.clock.Now())
}

// Allocate resolves the partition for a new record and issues its number.
// Resolution failures are returned before the store is touched.
func (a *Allocator) Allocate(ctx context.Context, recordType numbering.RecordType, fields numbering.Fields) (numbering.AllocatedNumber, error) {
	key, err := a.Resolve(recordType, fields)
	if err != nil {
		return numbering.AllocatedNumber{}, err
	}
	return a.AllocateKey(ctx, key)
}

// AllocateKey issues the next number in an already resolved partition, in a
// transaction of its own.
func (a *Allocator) AllocateKey(ctx context.Context, key numbering.PartitionKey) (numbering.AllocatedNumber, error) {
	return a.observe(ctx, key, true, func(holdCtx context.Context, issue IssueFunc) error {
		return a.scope.Execute(holdCtx, func(txCtx context.Context, repos TransactionalRepositories) error {
			_, err := issue(txCtx, repos.SequenceStore())
			return err
		})
	})
}

// IssueFunc draws the number of one allocation from store.
type IssueFunc func(ctx context.Context, store numbering.SequenceStore) (numbering.AllocatedNumber, error)

// AllocateWithin issues a number in a transaction owned by the caller. run
// opens that transaction under the hold deadline and calls issue on its
// sequence store once per attempt; the number counts as allocated only if run returns
// nil. Errors raised by the caller after issue pass through unchanged.
func (a *Allocator) AllocateWithin(ctx context.Context, key numbering.PartitionKey, run func(holdCtx context.Context, issue IssueFunc) error) (numbering.AllocatedNumber, error) {
	return a.observe(ctx, key, false, run)
}

func (a *Allocator) observe(ctx context.Context, key numbering.PartitionKey, ownsTx bool, run func(context.Context, IssueFunc) error) (numbering.AllocatedNumber, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering", "allocate",
		telemetry.WithAttribute(telemetry.SpanAttrPrefix, key.Prefix),
		telemetry.WithAttribute(telemetry.SpanAttrPeriod, key.Period),
	)
	defer span.End()

	start := time.Now()
	var result numbering.AllocatedNumber
	var issued bool

	err := a.checkKey(key)
	if err == nil {
		holdCtx, cancel := context.WithTimeout(ctx, a.holdTimeout)
		// stores that retry on conflict call issue again; the last draw is the committed one
		err = run(holdCtx, func(txCtx context.Context, store numbering.SequenceStore) (numbering.AllocatedNumber, error) {
			issued = false
			n, err := a.AllocateIn(txCtx, store, key)
			if err != nil {
				return numbering.AllocatedNumber{}, err
			}
			result, issued = n, true
			return n, nil
		})
		if err == nil && !issued {
			err = fmt.Errorf("%w: allocation finished without drawing a number", shared.ErrInvalidState)
		}
		if ownsTx || !issued {
			err = classify(holdCtx, err)
		}
		cancel()
	}

	a.metrics.RecordAllocation(ctx, key, outcomeOf(err), time.Since(start).Seconds())
	log := a.log(ctx).With(zap.String("partition", key.String()), zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("sequence allocation failed", zap.Error(err))
		return numbering.AllocatedNumber{}, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrCounter, int64(result.Counter))
	telemetry.SetAttribute(span, telemetry.SpanAttrDisplay, result.Display)
	log.Debug("sequence number allocated", zap.String("display", result.Display))
	return result, nil
}

// AllocateIn runs one allocation on store, inside a transaction owned by the
// caller. The caller commits or rolls back; nothing is visible until then.
func (a *Allocator) AllocateIn(ctx context.Context, store numbering.SequenceStore, key numbering.PartitionKey) (numbering.AllocatedNumber, error) {
	if err := a.checkKey(key); err != nil {
		return numbering.AllocatedNumber{}, err
	}
	limit, err := a.formatter.Capacity(key.Prefix)
	if err != nil {
		return numbering.AllocatedNumber{}, err
	}

	last, _, err := store.GetForUpdate(ctx, key)
	if err != nil {
		return numbering.AllocatedNumber{}, err
	}
	if last >= limit {
		return numbering.AllocatedNumber{}, fmt.Errorf("%w: partition %s exhausted at %d", numbering.ErrAllocationFailed, key, last)
	}

	next := last + 1
	display, err := a.formatter.Format(key, next)
	if err != nil {
		return numbering.AllocatedNumber{}, fmt.Errorf("%w: %w", numbering.ErrAllocationFailed, err)
	}
	if err := store.Set(ctx, key, next); err != nil {
		return numbering.AllocatedNumber{}, err
	}

	return numbering.AllocatedNumber{Key: key, Counter: next, Display: display}, nil
}

// Bootstrap seeds key so the next allocation follows maxObserved. The counter
// never decreases: the stored value becomes max(current, maxObserved), which
// is returned.
func (a *Allocator) Bootstrap(ctx context.Context, key numbering.PartitionKey, maxObserved uint64) (uint64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering", "bootstrap",
		telemetry.WithAttribute(telemetry.SpanAttrPrefix, key.Prefix),
		telemetry.WithAttribute(telemetry.SpanAttrPeriod, key.Period),
	)
	defer span.End()

	if err := a.checkKey(key); err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	limit, err := a.formatter.Capacity(key.Prefix)
	if err != nil {
		return 0, err
	}
	if maxObserved > limit {
		err := fmt.Errorf("%w: observed counter %d exceeds capacity %d of %s", shared.ErrInvalidInput, maxObserved, limit, key)
		telemetry.RecordError(span, err)
		return 0, err
	}

	var current uint64
	var advanced bool
	holdCtx, cancel := context.WithTimeout(ctx, a.holdTimeout)
	defer cancel()
	err = a.scope.Execute(holdCtx, func(txCtx context.Context, repos TransactionalRepositories) error {
		store := repos.SequenceStore()
		last, existed, err := store.GetForUpdate(txCtx, key)
		if err != nil {
			return err
		}
		current, advanced = last, false
		switch {
		case maxObserved > last:
			current, advanced = maxObserved, true
			return store.Set(txCtx, key, current)
		case !existed:
			// materialise the reserved row so the partition shows up in listings
			return store.Set(txCtx, key, last)
		}
		return nil
	})
	if err = classify(holdCtx, err); err != nil {
		telemetry.RecordError(span, err)
		a.log(ctx).Error("sequence bootstrap failed", zap.String("partition", key.String()), zap.Error(err))
		return 0, err
	}

	a.metrics.RecordBootstrap(ctx, key, advanced)
	a.log(ctx).Info("sequence counter bootstrapped",
		zap.String("partition", key.String()),
		zap.Uint64("max_observed", maxObserved),
		zap.Uint64("last_value", current),
		zap.Bool("advanced", advanced),
	)
	return current, nil
}

func (a *Allocator) checkKey(key numbering.PartitionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if _, ok := a.registry.Width(key.Prefix); !ok {
		return fmt.Errorf("%w: unknown prefix %q", numbering.ErrUnsupportedRecordType, key.Prefix)
	}
	return nil
}

func (a *Allocator) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, logger.FromContextOr(ctx, a.logger))
}

// classify maps whatever ended a transaction onto the allocation error set.
// Errors already carrying an allocation code pass through unchanged.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%w: hold not acquired in time: %w", numbering.ErrAllocationFailed, err)
	}
	return fmt.Errorf("%w: %w", numbering.ErrAllocationFailed, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, numbering.ErrStoreUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, numbering.ErrAllocationFailed):
		return OutcomeFailed
	default:
		return OutcomeRejected
	}
}
