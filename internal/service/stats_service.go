package service

import (
	"context"
	"fmt"
	"time"

	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/storage"
	"github.com/transfer-indexer/internal/types"
)

// TransferReader is the repository surface the stats service reads from.
type TransferReader interface {
	Count(ctx context.Context) (int64, error)
	AddressCount(ctx context.Context) (int64, error)
	TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error)
	DailyAudit(ctx context.Context, days int) ([]storage.DailyAuditRow, error)
	Recent(ctx context.Context, limit int) ([]types.Transfer, error)
}

// ProgressReader reads scan checkpoints for progress reporting.
type ProgressReader interface {
	All(ctx context.Context) (map[string]uint64, error)
}

// AuditMirror serves daily aggregates from the analytics mirror when it is
// configured. The Postgres transfers table remains the fallback.
type AuditMirror interface {
	DailyVolume(ctx context.Context, days int) ([]storage.DailyAuditRow, error)
}

// StatsService serves the dashboard's aggregate queries with a short-lived
// Redis cache in front. All figures derive from the transfer ledger; a cache
// flush never loses data.
type StatsService struct {
	transfers TransferReader
	progress  ProgressReader
	cache     *storage.RedisCache
	mirror    AuditMirror
	cacheTTL  time.Duration
	logger    *logging.Logger
}

// NewStatsService creates a stats service. cache and mirror may be nil.
func NewStatsService(transfers TransferReader, progress ProgressReader,
	cache *storage.RedisCache, mirror AuditMirror, cacheTTL time.Duration,
	logger *logging.Logger) *StatsService {
	return &StatsService{
		transfers: transfers,
		progress:  progress,
		cache:     cache,
		mirror:    mirror,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Summary is the dashboard's headline figures.
type Summary struct {
	TotalTransfers      int64     `json:"totalTransfers"`
	TrackedAddresses    int64     `json:"trackedAddresses"`
	LastBackfilledBlock uint64    `json:"lastBackfilledBlock"`
	LastIndexedBlock    uint64    `json:"lastIndexedBlock"`
	GeneratedAt         time.Time `json:"generatedAt"`
}

// Summary returns transfer totals and scan progress.
func (s *StatsService) Summary(ctx context.Context) (*Summary, error) {
	var cached Summary
	if s.cacheHit(ctx, "stats:summary", &cached) {
		return &cached, nil
	}

	count, err := s.transfers.Count(ctx)
	if err != nil {
		return nil, err
	}
	addresses, err := s.transfers.AddressCount(ctx)
	if err != nil {
		return nil, err
	}
	checkpoints, err := s.progress.All(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalTransfers:      count,
		TrackedAddresses:    addresses,
		LastBackfilledBlock: checkpoints[types.CheckpointBackfill],
		LastIndexedBlock:    checkpoints[types.CheckpointLive],
		GeneratedAt:         time.Now().UTC(),
	}
	s.cachePut(ctx, "stats:summary", summary)
	return summary, nil
}

// TopHolders returns the highest net balances, cached per limit.
func (s *StatsService) TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error) {
	if limit <= 0 {
		limit = 50
	}
	key := fmt.Sprintf("stats:holders:top:%d", limit)

	var cached []types.HolderBalance
	if s.cacheHit(ctx, key, &cached) {
		return cached, nil
	}

	holders, err := s.transfers.TopHolders(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, key, holders)
	return holders, nil
}

// DailyAudit returns per-day transfer counts and volume. The analytics mirror
// answers when configured; otherwise the transfers table aggregates directly.
func (s *StatsService) DailyAudit(ctx context.Context, days int) ([]storage.DailyAuditRow, error) {
	if days <= 0 {
		days = 30
	}
	key := fmt.Sprintf("stats:audit:daily:%d", days)

	var cached []storage.DailyAuditRow
	if s.cacheHit(ctx, key, &cached) {
		return cached, nil
	}

	var rows []storage.DailyAuditRow
	var err error
	if s.mirror != nil {
		rows, err = s.mirror.DailyVolume(ctx, days)
		if err != nil {
			s.logger.WithError(err).Warn("analytics mirror query failed, falling back to postgres")
			rows, err = s.transfers.DailyAudit(ctx, days)
		}
	} else {
		rows, err = s.transfers.DailyAudit(ctx, days)
	}
	if err != nil {
		return nil, err
	}

	s.cachePut(ctx, key, rows)
	return rows, nil
}

// Progress returns every stored scan checkpoint, uncached.
func (s *StatsService) Progress(ctx context.Context) (map[string]uint64, error) {
	return s.progress.All(ctx)
}

// Recent returns the most recently ingested transfers, newest first.
func (s *StatsService) Recent(ctx context.Context, limit int) ([]types.Transfer, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.transfers.Recent(ctx, limit)
}

// cacheHit reads a cached value. Cache failures degrade to the database, so
// errors are logged and treated as misses.
func (s *StatsService) cacheHit(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.logger.WithError(err).Warn("cache read failed")
		return false
	}
	return hit
}

func (s *StatsService) cachePut(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("cache write failed")
	}
}
