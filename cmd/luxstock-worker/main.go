package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"luxstock/internal/amqp"
	"luxstock/internal/backend"
	"luxstock/internal/cli"
	"luxstock/internal/config"
	"luxstock/internal/log"
	"luxstock/internal/metrics"
	"luxstock/internal/services"
	gsheet "luxstock/internal/sheets/google"
	"luxstock/internal/worker"
)

// resyncInterval rewrites the current year to recover from lost events.
const resyncInterval = time.Hour

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting luxstock-worker", log.FieldOperation, log.OpStartup)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	storeResult, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New()
	// No cache: the worker must see what the server just committed
	svc := services.NewInventoryService(storeResult.Store,
		services.WithMetrics(m),
		services.WithLogger(logger))

	sheetsClient, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(svc, sheetsClient, m, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	opsServer := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := opsServer.Shutdown(ctx); err != nil {
			logger.Error("Ops server shutdown error", log.FieldError, err)
		}
		_ = amqpClient.Close()
		if storeResult.Cleanup != nil {
			if err := storeResult.Cleanup(); err != nil {
				logger.Error("Failed to close store", log.FieldError, err)
			}
		}
	})

	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ops server error", log.FieldError, err, "port", cfg.Port)
		}
	}()

	// Catch up on changes made while the worker was down
	if err := syncWorker.ResyncYear(ctx, time.Now().Year()); err != nil {
		logger.Error("Startup resync failed", log.FieldError, err)
	}

	go func() {
		ticker := time.NewTicker(resyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.ResyncYear(ctx, time.Now().Year()); err != nil {
					logger.Error("Periodic resync failed", log.FieldError, err)
				}
			}
		}
	}()

	go func() {
		if err := amqpClient.ConsumeItemEvents(ctx, syncWorker.HandleItemEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption stopped", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
