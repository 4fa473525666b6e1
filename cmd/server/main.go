package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relnotify/internal/api"
	"relnotify/internal/config"
	"relnotify/internal/db"
	"relnotify/internal/email"
	"relnotify/internal/metrics"
	"relnotify/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Email Transport + Renderer
	// ------------------------------------------------
	transport := email.NewSMTPTransport(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPSecure,
		cfg.SMTPUser,
		cfg.SMTPPassword,
	)

	renderer, err := email.NewRenderer(cfg.SiteName, cfg.SiteURL)
	if err != nil {
		logger.Fatal("email templates failed to parse", zap.Error(err))
	}

	classifier := email.NewClassifier(cfg.RecipientErrorCodes)

	// ------------------------------------------------
	// Rate Limiter (inter-message pacing)
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Every(cfg.MessageDelay), 1)

	// ------------------------------------------------
	// Dispatch Pipeline
	// ------------------------------------------------
	sender := worker.NewSender(
		store,
		transport,
		renderer,
		classifier,
		limiter,
		cfg.BatchSize,
		cfg.SenderName,
		cfg.SenderAddress,
		logger,
	)

	lifecycle := worker.NewLifecycle(
		store,
		store,
		store,
		store,
		cfg.BatchSize,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
		cfg.HistoryLimit,
		logger,
	)

	scheduler := worker.NewScheduler(
		store,
		store,
		sender,
		lifecycle,
		cfg.ActiveInterval,
		cfg.IdleInterval,
		cfg.BatchDelay,
		logger,
	)

	scheduler.Start(ctx)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Store:       store,
		Lifecycle:   lifecycle,
		Scheduler:   scheduler,
		Transport:   transport,
		Renderer:    renderer,
		FromName:    cfg.SenderName,
		FromAddress: cfg.SenderAddress,
		Log:         logger,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiHandler.Routes(),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	// In-flight batch sends finish; the checkpoint design makes an
	// interrupted cycle safe to re-run from the same offset.
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
