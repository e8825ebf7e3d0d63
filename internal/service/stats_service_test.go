package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/storage"
	"github.com/transfer-indexer/internal/types"
)

type fakeTransferReader struct {
	count      int64
	addresses  int64
	countCalls int
	holders    []types.HolderBalance
	audit      []storage.DailyAuditRow
	auditCalls int
	recent     []types.Transfer
}

func (f *fakeTransferReader) Count(ctx context.Context) (int64, error) {
	f.countCalls++
	return f.count, nil
}

func (f *fakeTransferReader) AddressCount(ctx context.Context) (int64, error) {
	return f.addresses, nil
}

func (f *fakeTransferReader) TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error) {
	if limit < len(f.holders) {
		return f.holders[:limit], nil
	}
	return f.holders, nil
}

func (f *fakeTransferReader) DailyAudit(ctx context.Context, days int) ([]storage.DailyAuditRow, error) {
	f.auditCalls++
	return f.audit, nil
}

func (f *fakeTransferReader) Recent(ctx context.Context, limit int) ([]types.Transfer, error) {
	return f.recent, nil
}

type fakeProgressReader struct {
	checkpoints map[string]uint64
}

func (f *fakeProgressReader) All(ctx context.Context) (map[string]uint64, error) {
	return f.checkpoints, nil
}

type fakeMirror struct {
	rows  []storage.DailyAuditRow
	err   error
	calls int
}

func (f *fakeMirror) DailyVolume(ctx context.Context, days int) ([]storage.DailyAuditRow, error) {
	f.calls++
	return f.rows, f.err
}

func testCache(t *testing.T) *storage.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return storage.NewRedisCacheWithClient(client)
}

func statsLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelFatal, logging.FormatText)
}

func TestSummaryReportsCountsAndCheckpoints(t *testing.T) {
	transfers := &fakeTransferReader{count: 42, addresses: 9}
	progress := &fakeProgressReader{checkpoints: map[string]uint64{
		types.CheckpointBackfill: 1000,
		types.CheckpointLive:     2000,
	}}

	svc := NewStatsService(transfers, progress, nil, nil, time.Minute, statsLogger())
	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), summary.TotalTransfers)
	assert.Equal(t, int64(9), summary.TrackedAddresses)
	assert.Equal(t, uint64(1000), summary.LastBackfilledBlock)
	assert.Equal(t, uint64(2000), summary.LastIndexedBlock)
}

func TestSummaryIsCached(t *testing.T) {
	transfers := &fakeTransferReader{count: 7}
	progress := &fakeProgressReader{checkpoints: map[string]uint64{}}

	svc := NewStatsService(transfers, progress, testCache(t), nil, time.Minute, statsLogger())

	first, err := svc.Summary(context.Background())
	require.NoError(t, err)
	second, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.TotalTransfers, second.TotalTransfers)
	assert.Equal(t, 1, transfers.countCalls, "second call must be served from cache")
}

func TestDailyAuditPrefersMirror(t *testing.T) {
	transfers := &fakeTransferReader{}
	mirror := &fakeMirror{rows: []storage.DailyAuditRow{
		{Day: time.Now().UTC().Truncate(24 * time.Hour), Transfers: 5, Volume: "500"},
	}}

	svc := NewStatsService(transfers, &fakeProgressReader{}, nil, mirror, time.Minute, statsLogger())
	rows, err := svc.DailyAudit(context.Background(), 7)
	require.NoError(t, err)

	assert.Len(t, rows, 1)
	assert.Equal(t, 1, mirror.calls)
	assert.Equal(t, 0, transfers.auditCalls)
}

func TestDailyAuditFallsBackWhenMirrorFails(t *testing.T) {
	transfers := &fakeTransferReader{audit: []storage.DailyAuditRow{
		{Transfers: 3, Volume: "30"},
	}}
	mirror := &fakeMirror{err: errors.New("connection refused")}

	svc := NewStatsService(transfers, &fakeProgressReader{}, nil, mirror, time.Minute, statsLogger())
	rows, err := svc.DailyAudit(context.Background(), 7)
	require.NoError(t, err)

	assert.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].Transfers)
	assert.Equal(t, 1, transfers.auditCalls)
}

func TestTopHoldersCachedPerLimit(t *testing.T) {
	transfers := &fakeTransferReader{holders: []types.HolderBalance{
		{AddressID: 1, Address: "0xaa", Balance: "100"},
		{AddressID: 2, Address: "0xbb", Balance: "50"},
	}}

	svc := NewStatsService(transfers, &fakeProgressReader{}, testCache(t), nil, time.Minute, statsLogger())

	one, err := svc.TopHolders(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	two, err := svc.TopHolders(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, two, 2, "different limits must not share a cache entry")
}
