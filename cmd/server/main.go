// Package main provides the dashboard API server entry point.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transfer-indexer/internal/analytics"
	"github.com/transfer-indexer/internal/api"
	"github.com/transfer-indexer/internal/config"
	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/service"
	"github.com/transfer-indexer/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	// Connect to Postgres
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// Redis is a read cache only; the API degrades to direct queries when it
	// is unreachable.
	var cache *storage.RedisCache
	if redisCache, err := storage.NewRedisCache(&cfg.Database.Redis); err != nil {
		logger.WithError(err).Warn("Redis unavailable, serving uncached")
	} else {
		cache = redisCache
		defer cache.Close()
	}

	// Optional analytics mirror for the daily audit aggregates.
	var mirror service.AuditMirror
	if cfg.Database.ClickHouse.Enabled() {
		chMirror, err := analytics.NewClickHouseMirror(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse mirror unavailable, aggregating in Postgres")
		} else {
			defer chMirror.Close()
			mirror = chMirror
		}
	}

	transferRepo := storage.NewTransferRepository(postgres)
	progressRepo := storage.NewProgressRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)

	statsService := service.NewStatsService(transferRepo, progressRepo, cache, mirror,
		cfg.Server.CacheTTL, logger)
	holderService := service.NewHolderService(transferRepo)

	// The server only reads snapshots, so no chain client is needed here; the
	// snapshot binary does the contract calls.
	snapshotService := service.NewSnapshotService(nil, snapshotRepo, cfg.Snapshot,
		cfg.Chain.TokenContract, logger)

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	server := api.NewServer(serverConfig, statsService, holderService, snapshotService,
		postgres, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]any{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
