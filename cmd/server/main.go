package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/infrastructure/config"
	"github.com/aglc/backoffice/internal/infrastructure/logger"
	"github.com/aglc/backoffice/internal/infrastructure/seqstore"
	"github.com/aglc/backoffice/internal/infrastructure/telemetry"
	"github.com/aglc/backoffice/internal/interfaces/http/handler"
	"github.com/aglc/backoffice/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			Back Office Numbering API
//	@version		1.0
//	@description	Issues gapless, period-scoped numbers for customers, bookings and payment requests

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.LoadFrom(os.Getenv("BACKOFFICE_CONFIG"))
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// Bootstrap logger, replaced once the log exporter is up
	bootLog, err := newLogger(cfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log, err := newLogger(cfg, logProvider.ZapCore(cfg.Telemetry.ServiceName, zapcore.InfoLevel))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting sequence number service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store", cfg.Numbering.Store),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	meter := meterProvider.Meter(telemetry.MeterName)

	st, err := seqstore.Open(ctx, cfg, seqstore.Options{Logger: log, Meter: meter})
	if err != nil {
		log.Fatal("Failed to open sequence store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Error closing store", zap.Error(err))
		}
	}()

	registry, err := numbering.NewSchemeRegistry(cfg.Numbering.Schemes)
	if err != nil {
		log.Fatal("Invalid numbering schemes", zap.Error(err))
	}
	loc, err := cfg.Numbering.Location()
	if err != nil {
		log.Fatal("Invalid numbering time zone", zap.Error(err))
	}

	numberingMetrics, err := telemetry.NewNumberingMetrics(meter, st.Counters, log)
	if err != nil {
		log.Fatal("Failed to create numbering metrics", zap.Error(err))
	}
	defer numberingMetrics.Stop()

	allocator := appnumbering.NewAllocator(st.Scope, registry,
		appnumbering.WithClock(numbering.SystemClock{Location: loc}),
		appnumbering.WithHoldTimeout(cfg.Numbering.HoldTimeout),
		appnumbering.WithLogger(log),
		appnumbering.WithMetrics(numberingMetrics),
	)

	httpMeter := meter
	if !meterProvider.IsEnabled() {
		httpMeter = nil
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         log,
		Meter:          httpMeter,
		TracingEnabled: tracerProvider.IsEnabled(),
		RequestTimeout: cfg.Numbering.HoldTimeout + 5*time.Second,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}
	checks := make(map[string]handler.HealthCheck, len(st.Checks))
	for name, check := range st.Checks {
		checks[name] = check
	}
	handler.NewHealthHandler(checks).RegisterRoutes(engine)
	router.NewRouter(engine).
		Register(handler.NewNumberingHandler(allocator, st.Histories, st.Counters)).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logs":   logProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

func newLogger(cfg *config.Config, extra ...zapcore.Core) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, extra...)
}
