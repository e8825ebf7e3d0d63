// Package scanner implements the log scan state machine that drives
// ingestion: a resumable backfill mode for historical catch-up and a
// live-tail mode that follows the chain head behind a confirmation lag.
package scanner

import (
	"context"
	"fmt"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/transfer-indexer/internal/config"
	"github.com/transfer-indexer/internal/decode"
	apperrors "github.com/transfer-indexer/internal/errors"
	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/storage"
	"github.com/transfer-indexer/internal/types"
)

// Mode selects which scanning loop a Scanner runs.
type Mode string

const (
	// ModeBackfill catches up from the resume point to the safe head, then
	// returns.
	ModeBackfill Mode = "backfill"
	// ModeLive follows the safe head indefinitely, re-scanning a small
	// lookback window each poll to absorb shallow reorgs.
	ModeLive Mode = "live"
)

// scan states, logged on transitions
type state string

const (
	stateResolvingStart state = "RESOLVING_START"
	stateCatchingUp     state = "CATCHING_UP"
	stateSteadyTail     state = "STEADY_STATE_TAIL"
	stateAborted        state = "ABORTED"
)

// ChainClient is the chain surface the scanner needs.
type ChainClient interface {
	HeadBlock(ctx context.Context) (uint64, error)
	TransferLogs(ctx context.Context, from, to uint64) ([]ethtypes.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (time.Time, error)
}

// ProgressStore reads the persisted checkpoint for resume.
type ProgressStore interface {
	Checkpoint(ctx context.Context, name string) (uint64, bool, error)
}

// TransferStore reads the highest ingested block, the last resume fallback.
type TransferStore interface {
	MaxBlockNumber(ctx context.Context) (uint64, bool, error)
}

// Locker is the advisory lock guarding one scanning mode.
type Locker interface {
	Name() string
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scanner walks block ranges in ascending order, decodes transfer logs, and
// hands chunks to the ingestion writer. It is single-threaded; the two modes
// run as independent Scanner instances.
type Scanner struct {
	mode      Mode
	cfg       config.ScannerConfig
	chain     ChainClient
	writer    storage.ChunkWriter
	progress  ProgressStore
	transfers TransferStore
	lock      Locker
	logger    *logging.Logger

	sizer  *chunkSizer
	cursor uint64
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a scanner for one mode.
func New(mode Mode, cfg config.ScannerConfig, chain ChainClient, writer storage.ChunkWriter,
	progress ProgressStore, transfers TransferStore, lock Locker, logger *logging.Logger) *Scanner {
	return &Scanner{
		mode:      mode,
		cfg:       cfg,
		chain:     chain,
		writer:    writer,
		progress:  progress,
		transfers: transfers,
		lock:      lock,
		logger: logger.WithFields(map[string]any{
			"mode":       string(mode),
			"scanner_id": uuid.NewString(),
		}),
		sizer: newChunkSizer(cfg.ChunkSize, cfg.MinChunkSize),
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scanner) checkpointName() string {
	if s.mode == ModeBackfill {
		return types.CheckpointBackfill
	}
	return types.CheckpointLive
}

// Run executes the scan loop until completion (backfill), cancellation, or a
// fatal error. The advisory lock is held for the whole run and released on
// every exit path.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer func() {
		// Release must survive caller cancellation; a dropped connection is
		// reclaimed by the store either way.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx); err != nil {
			s.logger.WithError(err).Warn("failed to release advisory lock")
		}
	}()

	err := s.run(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.WithFields(map[string]any{
			"state": string(stateAborted),
			"error": err.Error(),
		}).Error("scanner aborted")
	}
	return err
}

func (s *Scanner) run(ctx context.Context) error {
	s.logger.WithField("state", string(stateResolvingStart)).Info("resolving resume point")

	start, err := s.resolveStart(ctx)
	if err != nil {
		return err
	}
	s.cursor = start

	s.logger.WithFields(map[string]any{
		"state":      string(stateCatchingUp),
		"from_block": start,
		"chunk_size": s.sizer.size(),
	}).Info("scanner started")

	if err := s.catchUp(ctx); err != nil {
		return err
	}

	if s.mode == ModeBackfill {
		s.logger.WithField("cursor", s.cursor).Info("backfill complete")
		return nil
	}

	s.logger.WithField("state", string(stateSteadyTail)).Info("caught up, tailing head")
	return s.tail(ctx)
}

func (s *Scanner) acquireLock(ctx context.Context) error {
	for {
		ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire lock %q: %w", s.lock.Name(), err)
		}
		if ok {
			return nil
		}
		// Contention is expected, not an error: the other scanning mode is
		// writing. Sleep and retry.
		s.logger.WithField("lock", s.lock.Name()).Info("lock held elsewhere, waiting")
		if err := s.sleep(ctx, s.cfg.LockRetryInterval); err != nil {
			return err
		}
	}
}

// resolveStart computes the first block to scan: checkpoint+1 clamped up to
// the configured start block; without a checkpoint, the configured start
// block, then the highest ingested transfer block + 1, in that order.
func (s *Scanner) resolveStart(ctx context.Context) (uint64, error) {
	checkpoint, ok, err := s.progress.Checkpoint(ctx, s.checkpointName())
	if err != nil {
		return 0, err
	}
	if ok {
		start := checkpoint + 1
		if s.cfg.StartBlock > start {
			start = s.cfg.StartBlock
		}
		return start, nil
	}

	if s.cfg.StartBlock > 0 {
		return s.cfg.StartBlock, nil
	}

	maxBlock, ok, err := s.transfers.MaxBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		return maxBlock + 1, nil
	}
	return 0, nil
}

// catchUp processes chunks in ascending order until the cursor passes the
// safe head. Chunk failures shrink the chunk size and retry the same range;
// the checkpoint never advances past an uncommitted chunk.
func (s *Scanner) catchUp(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		head, err := s.chain.HeadBlock(ctx)
		if err != nil {
			return err
		}
		safe := safeHeight(head, s.cfg.Confirmations)
		if s.cursor > safe {
			return nil
		}

		for s.cursor <= safe {
			if err := ctx.Err(); err != nil {
				return err
			}

			to := s.cursor + s.sizer.size() - 1
			if to > safe {
				to = safe
			}

			if err := s.processChunk(ctx, s.cursor, to); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if apperrors.IsFatal(err) {
					return err
				}

				s.sizer.shrink()
				s.logger.WithFields(map[string]any{
					"from_block": s.cursor,
					"to_block":   to,
					"chunk_size": s.sizer.size(),
					"error":      err.Error(),
				}).Warn("chunk failed, retrying same range")

				if err := s.sleep(ctx, s.cfg.ChunkRetryDelay); err != nil {
					return err
				}
				continue
			}

			s.sizer.grow()
			s.cursor = to + 1
		}
	}
}

// tail runs the steady-state loop: sleep, rewind the cursor by the lookback
// window, and catch up again. Re-scanned blocks are absorbed by the writer's
// idempotent inserts and the monotonic checkpoint.
func (s *Scanner) tail(ctx context.Context) error {
	for {
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}

		if s.cfg.LookbackBlocks > 0 && s.cursor > s.cfg.LookbackBlocks {
			s.cursor -= s.cfg.LookbackBlocks
		}

		if err := s.catchUp(ctx); err != nil {
			return err
		}
	}
}

// processChunk fetches, decodes, and ingests one block range. One malformed
// log aborts the whole chunk: a partial chunk would break the checkpoint
// atomicity contract.
func (s *Scanner) processChunk(ctx context.Context, from, to uint64) error {
	logs, err := s.chain.TransferLogs(ctx, from, to)
	if err != nil {
		return err
	}

	transfers := make([]storage.TransferInput, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}

		decoded, err := decode.TransferLog(log)
		if err != nil {
			return fmt.Errorf("decode chunk [%d, %d]: %w", from, to, err)
		}

		blockTime, err := s.chain.BlockTimestamp(ctx, decoded.BlockNumber)
		if err != nil {
			return err
		}

		transfers = append(transfers, storage.TransferInput{
			TxHash:      decoded.TxHash,
			LogIndex:    decoded.LogIndex,
			BlockNumber: decoded.BlockNumber,
			BlockTime:   blockTime,
			From:        decoded.From,
			To:          decoded.To,
			RawAmount:   decoded.RawAmount,
		})
	}

	return s.writer.WriteChunk(ctx, storage.Chunk{
		Checkpoint: s.checkpointName(),
		EndBlock:   to,
		Transfers:  transfers,
	})
}

func safeHeight(head, confirmations uint64) uint64 {
	if head < confirmations {
		return 0
	}
	return head - confirmations
}
