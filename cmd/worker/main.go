package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexgrove/caselaw-search/internal/bootstrap"
	"github.com/lexgrove/caselaw-search/internal/config"
	"github.com/lexgrove/caselaw-search/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, bootstrap.Options{
		Service:   service,
		WithQueue: true,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	ingestMetrics := metrics.NewIngestMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: ingestMetrics.Handler(),
	}
	go func() {
		app.Logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()

	app.Logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReindexRequested(ctx, func(handlerCtx context.Context, reason string) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		app.Logger.Info("reindex_started", "reason", reason)
		start := time.Now()
		ingestMetrics.StartRun()

		stats, runErr := app.Ingestor.Run(runCtx)
		ingestMetrics.FinishRun(service, time.Since(start),
			stats.DocumentsLoaded, stats.ChunksCreated, stats.NewVectors, stats.BatchesProcessed, runErr)
		if runErr != nil {
			return runErr
		}

		app.Logger.Info("reindex_finished",
			"documents", stats.DocumentsLoaded,
			"new_vectors", stats.NewVectors,
			"elapsed_seconds", stats.ElapsedSeconds,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
