// Package seqstore opens the configured sequence store together with the
// record database it reads issued-number history from.
package seqstore

import (
	"context"
	"fmt"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/infrastructure/cache"
	"github.com/aglc/backoffice/internal/infrastructure/config"
	"github.com/aglc/backoffice/internal/infrastructure/logger"
	"github.com/aglc/backoffice/internal/infrastructure/persistence"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/memory"
	"github.com/aglc/backoffice/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Stores is an opened sequence store and its collaborators.
type Stores struct {
	Scope     appnumbering.TransactionScope
	Counters  numbering.CounterReader
	Histories map[numbering.RecordType]appnumbering.NumberHistory
	// Database is nil for the memory store.
	Database *persistence.Database
	// Checks are health probes by dependency name.
	Checks map[string]func(ctx context.Context) error

	closers []func() error
}

// Options tune Open.
type Options struct {
	Logger *zap.Logger
	// Meter receives database pool and query metrics; nil skips them.
	Meter metric.Meter
}

// Open connects the store named by cfg.Numbering.Store. Issued-number
// history always comes from the record database, so every store except
// memory opens it.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Stores, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	st := &Stores{Checks: make(map[string]func(ctx context.Context) error)}

	if cfg.Numbering.Store == config.StoreMemory {
		mem := memory.NewSequenceStore()
		st.Scope, st.Counters = mem, mem
		log.Warn("Using in-memory sequence store; counters are lost on restart")
		return st, nil
	}

	if err := st.openDatabase(cfg, log, opts.Meter); err != nil {
		st.Close()
		return nil, err
	}
	db := st.Database.DB
	st.Histories = map[numbering.RecordType]appnumbering.NumberHistory{
		numbering.RecordTypeCustomer:       persistence.NewGormCustomerRepository(db),
		numbering.RecordTypeBooking:        persistence.NewGormBookingRepository(db),
		numbering.RecordTypePaymentRequest: persistence.NewGormPaymentRequestRepository(db),
	}

	switch cfg.Numbering.Store {
	case config.StoreDatabase:
		st.Scope = persistence.NewGormSequenceScope(db)
		st.Counters = persistence.NewGormCounterRepository(db)
	case config.StoreRedis:
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, client.Close)
		st.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		redisStore := cache.NewRedisSequenceStore(client, cfg.Numbering.RedisKeyPrefix,
			cache.WithRetryBackoff(cfg.Numbering.RetryBackoff),
			cache.WithStoreLogger(log),
		)
		st.Scope, st.Counters = redisStore, redisStore
		log.Info("Redis sequence store connected", zap.String("addr", cfg.Redis.Addr()))
	default:
		st.Close()
		return nil, fmt.Errorf("unsupported numbering store %q", cfg.Numbering.Store)
	}
	return st, nil
}

func (st *Stores) openDatabase(cfg *config.Config, log *zap.Logger, meter metric.Meter) error {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithExpectedErrors(persistence.IsLockContention),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	st.Database = db
	st.closers = append(st.closers, db.Close)
	st.Checks["database"] = func(context.Context) error { return db.Ping() }
	log.Info("Database connected successfully", zap.String("dialect", db.Dialect()))

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        db.Dialect(),
		}, log); err != nil {
			return fmt.Errorf("register db tracing: %w", err)
		}
	}
	if meter == nil {
		return nil
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meter, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		return fmt.Errorf("register db metrics: %w", err)
	}
	if dbMetrics != nil {
		st.closers = append(st.closers, func() error { dbMetrics.Stop(); return nil })
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (st *Stores) Close() error {
	var firstErr error
	for i := len(st.closers) - 1; i >= 0; i-- {
		if err := st.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	st.closers = nil
	return firstErr
}
