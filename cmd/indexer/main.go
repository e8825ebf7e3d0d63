// Package main provides the indexer daemon entry point: the backfill and
// live-tail scanners running side by side against one Postgres database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/transfer-indexer/internal/adapter"
	"github.com/transfer-indexer/internal/analytics"
	"github.com/transfer-indexer/internal/config"
	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/scanner"
	"github.com/transfer-indexer/internal/storage"
)

func main() {
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
	logger.WithFields(map[string]any{
		"token":       cfg.Chain.TokenContract,
		"start_block": cfg.Scanner.StartBlock,
	}).Info("indexer starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// Connect to the chain; an unreachable RPC endpoint at startup is fatal.
	chain, err := adapter.Dial(ctx, &cfg.Chain, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RPC endpoint")
	}
	defer chain.Close()

	// Optional analytics mirror
	var mirror storage.TransferMirror
	if cfg.Database.ClickHouse.Enabled() {
		chMirror, err := analytics.NewClickHouseMirror(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse mirror unavailable, continuing without it")
		} else {
			defer chMirror.Close()
			mirror = chMirror
			logger.Info("ClickHouse analytics mirror enabled")
		}
	}

	resolver := storage.NewAddressResolver(postgres, cfg.Scanner.AddressCacheSize)
	writer := storage.NewIngestWriter(postgres, resolver, mirror, logger)
	progressRepo := storage.NewProgressRepository(postgres)
	transferRepo := storage.NewTransferRepository(postgres)

	// Both scanners contend for the same advisory lock name: the live tail
	// waits until backfill catches up and releases it, so the two modes
	// never write overlapping ranges concurrently.
	backfill := scanner.New(
		scanner.ModeBackfill, cfg.Scanner, chain, writer, progressRepo, transferRepo,
		storage.NewAdvisoryLock(postgres, cfg.Scanner.LockName),
		logger,
	)
	live := scanner.New(
		scanner.ModeLive, cfg.Scanner, chain, writer, progressRepo, transferRepo,
		storage.NewAdvisoryLock(postgres, cfg.Scanner.LockName),
		logger,
	)

	errs := make(chan error, 2)
	go func() {
		errs <- backfill.Run(ctx)
	}()
	go func() {
		errs <- live.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		// Wait for both scanners to unwind and release their locks.
		<-errs
		<-errs
	case err := <-errs:
		if err != nil && ctx.Err() == nil {
			cancel()
			<-errs
			logger.WithError(err).Fatal("scanner aborted")
		}
		// Backfill finishing cleanly is expected; keep tailing.
		logger.Info("backfill scanner finished, live tail continues")
		select {
		case sig := <-quit:
			logger.WithField("signal", sig.String()).Info("shutting down")
			cancel()
			<-errs
		case err := <-errs:
			if err != nil && ctx.Err() == nil {
				logger.WithError(err).Fatal("scanner aborted")
			}
		}
	}

	logger.Info("indexer exited")
}
