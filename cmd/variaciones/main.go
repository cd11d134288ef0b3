package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"variaciones/internal/amqp"
	"variaciones/internal/backend"
	"variaciones/internal/cache"
	"variaciones/internal/cli"
	apphttp "variaciones/internal/http"
	"variaciones/internal/ledger"
	applog "variaciones/internal/log"
	"variaciones/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	snapshots, err := backend.NewSnapshotCache(ctx, backend.CacheConfig{
		Type:       cfg.CacheBackend,
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
		RedisAddr:  cfg.RedisAddr,
	})
	if err != nil {
		logger.Error("Failed to initialize snapshot cache", "error", err, "cache", cfg.CacheBackend)
		os.Exit(1)
	}

	cacheManager := cache.NewManager()
	if snapshots.Local != nil {
		cacheManager.Register(snapshots.Local)
		cacheManager.StartCleanup(cfg.CacheTTL)
	}

	source := ledger.NewCachedSource(result.Backend, snapshots.Cache, cfg.FetchTimeout)
	variance := services.NewVarianceService(source, logger)

	srv := apphttp.NewServer(":"+cfg.Port, variance, apphttp.Options{
		Presentation: apphttp.Presentation{
			Title:    cfg.PageTitle,
			Subtitle: cfg.PageSubtitle,
			Layout:   cfg.PageLayout,
		},
		Logger: logger,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewSubscriber(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - cached snapshots expire by TTL only")
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if snapshots.Cleanup != nil {
			if err := snapshots.Cleanup(); err != nil {
				logger.Warn("Snapshot cache close error", "error", err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", "error", err)
			}
		}
	})

	if amqpClient != nil {
		go consumeInvalidations(runCtx, amqpClient, source, logger)
	}

	logger.Info("Starting variaciones server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"cache_ttl", cfg.CacheTTL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}

// consumeInvalidations drops the cached snapshot whenever an import lands.
func consumeInvalidations(ctx context.Context, client *amqp.Client, source *ledger.CachedSource, logger *applog.Logger) {
	log := logger.WithComponent(applog.ComponentAMQP)
	err := client.ConsumeInvalidations(ctx, func(ctx context.Context, msg *amqp.LedgerInvalidatedMessage) error {
		log.InfoContext(ctx, "Ledger invalidation received",
			applog.FieldSource, msg.Source,
			"reason", msg.Reason,
			"batch_id", msg.BatchID)
		source.Invalidate(ctx)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Invalidation consumer stopped", "error", err)
	}
}
