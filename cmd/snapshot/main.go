// Package main provides the supply snapshot tool: a one-shot (or periodic)
// capture of total supply, burned, locked, and LP-held token amounts by
// direct contract reads.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transfer-indexer/internal/adapter"
	"github.com/transfer-indexer/internal/config"
	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/service"
	"github.com/transfer-indexer/internal/storage"
)

func main() {
	interval := flag.Duration("interval", 0, "Take a snapshot every interval; 0 takes one and exits")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Invalid configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	chain, err := adapter.Dial(ctx, &cfg.Chain, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RPC endpoint")
	}
	defer chain.Close()

	reader, err := adapter.NewTokenReader(chain)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build token reader")
	}

	svc := service.NewSnapshotService(reader, storage.NewSnapshotRepository(postgres),
		cfg.Snapshot, cfg.Chain.TokenContract, logger)

	take := func() {
		snap, err := svc.Take(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Error("snapshot failed")
			return
		}
		logger.WithFields(map[string]any{
			"snapshot_id":  snap.ID,
			"total_supply": snap.TotalSupply,
		}).Info("snapshot stored")
	}

	take()
	if *interval <= 0 {
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			take()
		case sig := <-quit:
			logger.WithField("signal", sig.String()).Info("shutting down")
			cancel()
			return
		}
	}
}
