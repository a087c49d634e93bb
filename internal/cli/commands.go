package cli

import (
	"fmt"
	"strconv"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/spf13/cobra"
)

func newAllocateCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	var requestType string
	cmd := &cobra.Command{
		Use:   "allocate <record-type>",
		Short: "Issue the next number for a record type",
		Long: `Issue the next number for a record type (customer, booking or
payment_request). The number is consumed even if no record is created.`,
		Example: `  seqctl allocate customer
  seqctl allocate payment_request --request-type "Manager's Check"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				n, err := env.Allocator.Allocate(cmd.Context(), numbering.RecordType(args[0]),
					numbering.Fields{RequestType: requestType})
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).number(n.Key, n.Counter, n.Display)
			})
		},
	}
	cmd.Flags().StringVarP(&requestType, "request-type", "t", "", "payment request type (Check, Manager's Check, Petty Cash)")
	return cmd
}

func newBootstrapCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap <prefix> <period> <max-observed>",
		Short: "Raise a partition's counter to an observed maximum",
		Long: `Raise a partition's counter so the next allocation follows max-observed.
A counter that is already higher is left unchanged.`,
		Example: "  seqctl bootstrap AGLC 2025 417",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxObserved, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: max-observed %q is not a counter", shared.ErrInvalidInput, args[2])
			}
			key := numbering.PartitionKey{Prefix: args[0], Period: args[1]}
			return withEnv(cmd, opts, factory, func(env *Env) error {
				last, err := env.Allocator.Bootstrap(cmd.Context(), key, maxObserved)
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).counter(numbering.SequenceCounter{Key: key, LastValue: last})
			})
		},
	}
}

func newBackfillCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	var requestType, period string
	cmd := &cobra.Command{
		Use:   "backfill <record-type>",
		Short: "Seed a partition from numbers already stored on records",
		Example: `  seqctl backfill customer --period 2025
  seqctl backfill payment_request --request-type Check --period 2025`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordType := numbering.RecordType(args[0])
			return withEnv(cmd, opts, factory, func(env *Env) error {
				if period == "" {
					period = numbering.PeriodOf(env.Allocator.Clock().Now())
				}
				prefix, err := env.Allocator.Registry().PrefixFor(recordType, numbering.Fields{RequestType: requestType})
				if err != nil {
					return err
				}
				history, ok := env.Histories[recordType]
				if !ok || history == nil {
					return fmt.Errorf("%w: store has no record history for %s", shared.ErrInvalidState, recordType)
				}
				report, err := env.Allocator.BackfillFrom(cmd.Context(), numbering.PartitionKey{Prefix: prefix, Period: period}, history)
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).backfill(report)
			})
		},
	}
	cmd.Flags().StringVarP(&requestType, "request-type", "t", "", "payment request type")
	cmd.Flags().StringVarP(&period, "period", "p", "", "4-digit year (default: current year)")
	return cmd
}

func newParseCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "parse <display>...",
		Short:   "Split display numbers into prefix, period and counter",
		Example: "  seqctl parse C202500001 MCR202400042",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				out := newOutput(cmd, opts)
				for _, display := range args {
					key, counter, err := env.Allocator.Formatter().Parse(display)
					if err != nil {
						return err
					}
					if err := out.number(key, counter, ""); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newListCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				counters, err := env.Counters.ListCounters(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).counters(counters)
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only counters with this prefix")
	return cmd
}
