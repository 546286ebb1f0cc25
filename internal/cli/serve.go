package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemolabs/reprime/internal/api"
	"github.com/mnemolabs/reprime/internal/config"
	"github.com/mnemolabs/reprime/internal/report"
	"github.com/mnemolabs/reprime/internal/responder"
	"github.com/mnemolabs/reprime/internal/service"
	"github.com/mnemolabs/reprime/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine and its HTTP API",
	RunE:  runServe,
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.LogLevel())
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	itemStore := store.NewItemStore(pool)

	resp, err := responder.NewResponder(config.ResponderProvider(), config.ResponderURL())
	if err != nil {
		return fmt.Errorf("init responder: %w", err)
	}
	logger.Info("responder initialized", zap.String("provider", config.ResponderProvider()))

	priming := service.NewPrimingService(itemStore, resp, logger)
	priming.SetSessionCeiling(config.SessionCeiling())
	priming.SetReinstatement(config.ReinstatementStrength())

	cycles, err := config.LoadCycles(config.CyclesPath())
	if err != nil {
		return fmt.Errorf("load cycle table: %w", err)
	}

	scheduler := service.NewRescueScheduler(itemStore, priming, logger)
	scheduler.SetCycles(cycles)
	scheduler.SetWorkerPoolSize(config.WorkerPoolSize())
	scheduler.AddSink(report.NewLogSink(logger))

	if natsURL := config.NATSURL(); natsURL != "" {
		natsSink, err := report.NewNATSSink(natsURL, config.ReportSubject())
		if err != nil {
			return fmt.Errorf("init nats sink: %w", err)
		}
		defer natsSink.Close()
		scheduler.AddSink(natsSink)
		logger.Info("nats sink initialized", zap.String("subject", config.ReportSubject()))
	}

	watchdog := service.NewWatchdogService(itemStore, scheduler, logger)
	watchdog.SetInterval(config.WatchdogInterval())
	scheduler.SetFeedback(watchdog.Feedback())

	app := api.NewApp(api.Deps{
		ItemStore: itemStore,
		Priming:   priming,
		Watchdog:  watchdog,
		Scheduler: scheduler,
	}, logger)

	// Start background services
	scheduler.Start()
	watchdog.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	// Stop background services. Watchdog first so no new requests flow into
	// a stopping scheduler.
	watchdog.Stop()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
