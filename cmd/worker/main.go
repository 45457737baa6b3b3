package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/flipscout/internal/bootstrap"
	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/observability/logging"
	"github.com/kirillkom/flipscout/internal/observability/metrics"
)

const serviceName = "flipscout-worker"

// scanObserver feeds identification outcomes into worker metrics.
type scanObserver struct {
	metrics *metrics.WorkerMetrics
}

func (o scanObserver) ObserveScan(result domain.IdentificationPipelineResult, match *domain.VisualMatchSession) {
	o.metrics.RecordTier(serviceName, string(result.Tier))
	if match != nil {
		o.metrics.RecordVisualOutcome(serviceName, string(match.Category), string(match.Outcome))
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(serviceName, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		LagObserver:  func(lag time.Duration) { workerMetrics.ObserveQueueLag(serviceName, lag) },
		ScanObserver: scanObserver{metrics: workerMetrics},
	})
	if err != nil {
		logger.Fatal("bootstrap error", zap.Error(err))
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	timeout := cfg.Worker.ProcessTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	logger.Info("worker subscribed", zap.String("subject", cfg.NATS.Subject))
	err = app.Queue.SubscribeScanRequested(ctx, func(handlerCtx context.Context, scanID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()

		workerMetrics.StartScan()
		start := time.Now()
		err := app.ProcessUC.ProcessByID(processCtx, scanID)
		workerMetrics.FinishScan(serviceName, time.Since(start), err)
		return err
	})
	if err != nil {
		logger.Error("worker subscribe error", zap.Error(err))
	}
}
