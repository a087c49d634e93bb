package numbering

import (
	"context"
	"fmt"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RejectedNumber is a historical display that Backfill could not use.
type RejectedNumber struct {
	Display string `json:"display"`
	Reason  string `json:"reason"`
}

// BackfillReport summarises one backfill run.
type BackfillReport struct {
	Key         numbering.PartitionKey `json:"key"`
	MaxObserved uint64                 `json:"max_observed"`
	LastValue   uint64                 `json:"last_value"`
	Accepted    int                    `json:"accepted"`
	Rejected    []RejectedNumber       `json:"rejected"`
}

// Backfill parses historical displays for key, takes the highest counter
// among those that belong to the partition and bootstraps the counter with
// it. Malformed displays and displays from other partitions are skipped and
// reported; they never fail the run.
func (a *Allocator) Backfill(ctx context.Context, key numbering.PartitionKey, displays []string) (*BackfillReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering", "backfill",
		telemetry.WithAttribute(telemetry.SpanAttrPrefix, key.Prefix),
		telemetry.WithAttribute(telemetry.SpanAttrPeriod, key.Period),
		telemetry.WithAttribute("displays", len(displays)),
	)
	defer span.End()

	report := &BackfillReport{Key: key, Rejected: []RejectedNumber{}}
	log := a.log(ctx).With(zap.String("partition", key.String()))

	for _, display := range displays {
		parsed, counter, err := a.formatter.Parse(display)
		if err != nil {
			log.Warn("skipping malformed historical number", zap.String("display", display), zap.Error(err))
			report.Rejected = append(report.Rejected, RejectedNumber{Display: display, Reason: err.Error()})
			continue
		}
		if parsed != key {
			report.Rejected = append(report.Rejected, RejectedNumber{
				Display: display,
				Reason:  fmt.Sprintf("belongs to partition %s", parsed),
			})
			continue
		}
		report.Accepted++
		if counter > report.MaxObserved {
			report.MaxObserved = counter
		}
	}

	last, err := a.Bootstrap(ctx, key, report.MaxObserved)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	report.LastValue = last

	telemetry.AddEvent(span, "backfill_completed",
		"accepted", report.Accepted,
		"rejected", len(report.Rejected),
		"last_value", int64(last),
	)
	return report, nil
}

// BackfillFrom reads the partition's issued numbers from history and
// backfills with them.
func (a *Allocator) BackfillFrom(ctx context.Context, key numbering.PartitionKey, history NumberHistory) (*BackfillReport, error) {
	if err := a.checkKey(key); err != nil {
		return nil, err
	}
	displays, err := history.ListNumbers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: reading issued numbers for %s: %w", numbering.ErrStoreUnavailable, key, err)
	}
	return a.Backfill(ctx, key, displays)
}
