package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures GORM span instrumentation.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound variables in db.statement
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns tracing disabled with a 200ms slow-query mark.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db and adds row count, table and
// slow-query attributes to each statement span. Counter row locks taken by
// the sequence store therefore show up with their wait time.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowQueryThresh) }
	// registered ahead of otelgorm so the after hooks run while its span is open
	if err := registerAround(db, "otel_timing", before, after); err != nil {
		return err
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func annotateSpan(tx *gorm.DB, slow time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", slow.Milliseconds()),
		))
	}
}

// registerAround registers before and after on every GORM processor.
func registerAround(db *gorm.DB, name string, before, after func(*gorm.DB)) error {
	cb := db.Callback()
	register := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register(name+":before_create", before) },
		func() error { return cb.Create().After("gorm:create").Register(name+":after_create", after) },
		func() error { return cb.Query().Before("gorm:query").Register(name+":before_query", before) },
		func() error { return cb.Query().After("gorm:query").Register(name+":after_query", after) },
		func() error { return cb.Update().Before("gorm:update").Register(name+":before_update", before) },
		func() error { return cb.Update().After("gorm:update").Register(name+":after_update", after) },
		func() error { return cb.Delete().Before("gorm:delete").Register(name+":before_delete", before) },
		func() error { return cb.Delete().After("gorm:delete").Register(name+":after_delete", after) },
		func() error { return cb.Row().Before("gorm:row").Register(name+":before_row", before) },
		func() error { return cb.Row().After("gorm:row").Register(name+":after_row", after) },
		func() error { return cb.Raw().Before("gorm:raw").Register(name+":before_raw", before) },
		func() error { return cb.Raw().After("gorm:raw").Register(name+":after_raw", after) },
	}
	for _, r := range register {
		if err := r(); err != nil {
			return err
		}
	}
	return nil
}
