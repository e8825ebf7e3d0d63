package storage

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/transfer-indexer/internal/logging"
)

// insertBatchSize bounds the rows per INSERT statement. Sub-batching is a
// round-trip size concern only; the atomicity contract spans the whole chunk.
const insertBatchSize = 500

// TransferInput is one decoded transfer ready for ingestion, still keyed by
// raw addresses.
type TransferInput struct {
	TxHash      string
	LogIndex    uint32
	BlockNumber uint64
	BlockTime   time.Time
	From        string
	To          string
	RawAmount   *big.Int
}

// Chunk is the unit of ingestion: every decoded transfer of one scanned block
// range plus the checkpoint that confirms it.
type Chunk struct {
	Checkpoint string
	EndBlock   uint64
	Transfers  []TransferInput
}

// TransferMirror receives committed transfers for analytics, best-effort.
type TransferMirror interface {
	Append(ctx context.Context, transfers []TransferInput) error
}

// ChunkWriter ingests scanned chunks.
type ChunkWriter interface {
	WriteChunk(ctx context.Context, chunk Chunk) error
}

// IngestWriter is the sole mutation point for the transfers table and the
// scan checkpoints. Each chunk commits in one transaction: address
// resolution, idempotent transfer inserts, then the monotonic checkpoint.
// Any failure rolls the whole chunk back so no partial chunk is ever visible.
type IngestWriter struct {
	db       *PostgresDB
	resolver *AddressResolver
	mirror   TransferMirror
	logger   *logging.Logger
}

// NewIngestWriter creates an ingestion writer. mirror may be nil.
func NewIngestWriter(db *PostgresDB, resolver *AddressResolver, mirror TransferMirror, logger *logging.Logger) *IngestWriter {
	return &IngestWriter{
		db:       db,
		resolver: resolver,
		mirror:   mirror,
		logger:   logger,
	}
}

// WriteChunk ingests one chunk transactionally. Re-ingesting the same logs is
// a no-op by the (tx_hash, log_index) uniqueness constraint.
func (w *IngestWriter) WriteChunk(ctx context.Context, chunk Chunk) error {
	tx, err := w.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ingestion transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if len(chunk.Transfers) > 0 {
		addresses := make([]string, 0, len(chunk.Transfers)*2)
		for _, t := range chunk.Transfers {
			addresses = append(addresses, t.From, t.To)
		}

		ids, err := w.resolver.ResolveInTx(ctx, tx, addresses)
		if err != nil {
			return fmt.Errorf("failed to resolve addresses: %w", err)
		}

		for start := 0; start < len(chunk.Transfers); start += insertBatchSize {
			end := start + insertBatchSize
			if end > len(chunk.Transfers) {
				end = len(chunk.Transfers)
			}
			if err := insertTransfers(ctx, tx, chunk.Transfers[start:end], ids); err != nil {
				return err
			}
		}
	}

	if err := SaveCheckpointTx(ctx, tx, chunk.Checkpoint, chunk.EndBlock); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk: %w", err)
	}

	w.logger.WithFields(map[string]any{
		"checkpoint": chunk.Checkpoint,
		"end_block":  chunk.EndBlock,
		"transfers":  len(chunk.Transfers),
	}).Debug("chunk committed")

	// The mirror is a rebuildable analytics projection; a failed append must
	// not fail the committed chunk.
	if w.mirror != nil && len(chunk.Transfers) > 0 {
		if err := w.mirror.Append(ctx, chunk.Transfers); err != nil {
			w.logger.WithError(err).Warn("analytics mirror append failed")
		}
	}

	return nil
}

func insertTransfers(ctx context.Context, q Querier, transfers []TransferInput, ids map[string]int64) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO transfers (tx_hash, log_index, block_number, block_time, from_id, to_id, raw_amount) VALUES `)

	args := make([]any, 0, len(transfers)*7)
	for i, t := range transfers {
		fromID, ok := ids[strings.ToLower(t.From)]
		if !ok {
			return fmt.Errorf("unresolved sender address %s", t.From)
		}
		toID, ok := ids[strings.ToLower(t.To)]
		if !ok {
			return fmt.Errorf("unresolved recipient address %s", t.To)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args,
			t.TxHash, t.LogIndex, t.BlockNumber, t.BlockTime,
			fromID, toID, t.RawAmount.String())
	}

	sb.WriteString(` ON CONFLICT (tx_hash, log_index) DO NOTHING`)

	if _, err := q.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert transfer batch: %w", err)
	}
	return nil
}
