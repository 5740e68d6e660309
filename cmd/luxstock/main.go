package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"luxstock/internal/amqp"
	"luxstock/internal/backend"
	"luxstock/internal/cache"
	"luxstock/internal/cli"
	"luxstock/internal/config"
	apphttp "luxstock/internal/http"
	"luxstock/internal/log"
	"luxstock/internal/metrics"
	"luxstock/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp, (*config.Config).Validate)
	ctx := context.Background()

	factory := backend.NewFactory(logger.Logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	storeResult, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	cacheCfg, err := backend.CacheFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid cache configuration", log.FieldError, err)
		os.Exit(1)
	}
	cacheResult, err := factory.CreateCache(ctx, cacheCfg)
	if err != nil {
		logger.Error("Failed to initialize cache", log.FieldError, err, "cache", cfg.CacheBackend)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger.Logger)
	if cacheResult.Expirable != nil {
		cacheManager.Register(cacheResult.Expirable)
		cacheManager.StartCleanup(cfg.CacheTTL)
	}

	m := metrics.New()
	opts := []services.Option{
		services.WithCache(cacheResult.Cache),
		services.WithMetrics(m),
		services.WithLogger(logger),
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The inventory stays usable without the mirror
			logger.Warn("AMQP unavailable, item events disabled", log.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("Item events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewInventoryService(storeResult.Store, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithMetrics(m),
		apphttp.WithLogger(logger),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
	)

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		runCleanup(logger, "cache", cacheResult.Cleanup)
		runCleanup(logger, "store", storeResult.Cleanup)
	})

	logger.Info("Starting luxstock server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"events", amqpClient != nil,
		log.FieldOperation, log.OpStartup)

	start := time.Now()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully", "uptime", time.Since(start).Round(time.Second).String())
}

func runCleanup(logger *log.Logger, name string, cleanup backend.CleanupFunc) {
	if cleanup == nil {
		return
	}
	if err := cleanup(); err != nil {
		logger.Error("Cleanup failed", "resource", name, log.FieldError, err)
	}
}
