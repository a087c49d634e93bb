// Package cli implements seqctl, the operator tool for sequence counters.
package cli

import (
	"context"
	"fmt"
	"slices"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/infrastructure/config"
	"github.com/aglc/backoffice/internal/infrastructure/logger"
	"github.com/aglc/backoffice/internal/infrastructure/seqstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Store      string // overrides numbering.store when set
	Format     string // "text" | "json"
	LogLevel   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Env is what a command runs against. Close releases it.
type Env struct {
	Allocator *appnumbering.Allocator
	Counters  numbering.CounterReader
	Histories map[numbering.RecordType]appnumbering.NumberHistory
	Close     func() error
}

// EnvFactory opens an Env for one command invocation.
type EnvFactory func(ctx context.Context, opts *RootOptions) (*Env, error)

// NewRootCommand creates the seqctl root command. A nil factory opens the
// store described by the loaded configuration.
func NewRootCommand(factory EnvFactory) *cobra.Command {
	if factory == nil {
		factory = ConfigEnv
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "seqctl",
		Short: "Inspect and maintain back-office sequence counters",
		Long: `seqctl allocates, parses and seeds back-office sequence numbers
(C2025xxxxx customers, AGLC2025xxxxx bookings, CR/MCR/PCR payment requests)
against the store configured for the numbering service.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main reports the error once
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.toml")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "sequence store override (database|redis|memory)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(newAllocateCommand(opts, factory))
	cmd.AddCommand(newBootstrapCommand(opts, factory))
	cmd.AddCommand(newBackfillCommand(opts, factory))
	cmd.AddCommand(newParseCommand(opts, factory))
	cmd.AddCommand(newListCommand(opts, factory))

	return cmd
}

// ConfigEnv loads configuration and opens the configured store.
func ConfigEnv(ctx context.Context, opts *RootOptions) (*Env, error) {
	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Store != "" {
		cfg.Numbering.Store = opts.Store
	}

	log, err := logger.New(&logger.Config{
		Level:      opts.LogLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05.000",
	})
	if err != nil {
		return nil, err
	}

	registry, err := numbering.NewSchemeRegistry(cfg.Numbering.Schemes)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Numbering.Location()
	if err != nil {
		return nil, err
	}

	st, err := seqstore.Open(ctx, cfg, seqstore.Options{Logger: log})
	if err != nil {
		return nil, err
	}

	allocator := appnumbering.NewAllocator(st.Scope, registry,
		appnumbering.WithClock(numbering.SystemClock{Location: loc}),
		appnumbering.WithHoldTimeout(cfg.Numbering.HoldTimeout),
		appnumbering.WithLogger(log.With(zap.String("component", "seqctl"))),
	)
	return &Env{
		Allocator: allocator,
		Counters:  st.Counters,
		Histories: st.Histories,
		Close: func() error {
			_ = log.Sync()
			return st.Close()
		},
	}, nil
}

// withEnv opens an Env, runs fn and closes it.
func withEnv(cmd *cobra.Command, opts *RootOptions, factory EnvFactory, fn func(env *Env) error) error {
	env, err := factory(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer func() {
		if env.Close != nil {
			_ = env.Close()
		}
	}()
	return fn(env)
}
