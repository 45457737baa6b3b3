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

	httpadapter "github.com/kirillkom/flipscout/internal/adapters/http"
	"github.com/kirillkom/flipscout/internal/bootstrap"
	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/observability/logging"
	"github.com/kirillkom/flipscout/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New("flipscout-api", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		logger.Fatal("bootstrap error", zap.Error(err))
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg.API, httpadapter.Services{
		Decisions: app.Decisions,
		Intake:    app.Intake,
		Scans:     app.Scans,
		Confirmer: app.Scans,
		Library:   app.Library,
	}, metrics.NewHTTPServerMetrics("flipscout-api"), logger).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.API.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", zap.Error(err))
	}
}
