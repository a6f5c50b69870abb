// videoforge is the HTTP API server for asynchronous video generation jobs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"videoforge/internal/api"
	"videoforge/internal/config"
	"videoforge/internal/gateway"
	"videoforge/internal/health"
	"videoforge/internal/job"
	"videoforge/internal/logging"
	"videoforge/internal/observability"
)

func main() {
	// Local development convenience; missing .env is fine
	godotenv.Load()

	svcCfg := config.LoadServiceConfig()
	logging.Setup(svcCfg.LogFormat, svcCfg.LogLevel)

	if err := run(svcCfg); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run(svcCfg *config.ServiceConfig) error {
	ctx := context.Background()

	queueCfg := job.LoadQueueConfigFromEnv()
	gatewayOpts := gateway.LoadOptionsFromEnv()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Create generation gateway client
	genClient := gateway.NewClient(gatewayOpts)

	// Create health checker
	healthChecker := health.NewChecker(genClient)

	// Create job service with its pipeline worker pool
	jobService := job.NewService(genClient, metrics, queueCfg)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		JobService:     jobService,
		Metrics:        metrics,
		HealthChecker:  healthChecker,
		APIKey:         svcCfg.APIKey,
		MaxUploadBytes: svcCfg.MaxUploadBytes,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // uploads can be slow
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Drain the pipeline queue so accepted jobs reach a recorded state
	slog.Info("Draining pipeline queue")
	queueCtx, queueCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer queueCancel()
	if err := jobService.Close(queueCtx); err != nil {
		slog.Warn("Pipeline queue shutdown error", "error", err)
	}

	// Log final queue stats. Remote renders continue server-side; their
	// results are simply unobserved after this process exits.
	stats := jobService.QueueStats()
	slog.Info("Pipeline queue stats",
		"enqueued", stats.Enqueued,
		"executed", stats.Executed,
		"dropped", stats.Dropped,
	)

	slog.Info("Shutdown complete")
	return nil
}
