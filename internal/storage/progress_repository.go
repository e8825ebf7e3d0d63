package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ProgressRepository persists named scan checkpoints. Writes are monotonic:
// a proposed value below the stored one is coerced to the stored maximum, so
// a late or replayed write can never move a scanner backwards.
type ProgressRepository struct {
	db *PostgresDB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *PostgresDB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Checkpoint returns the stored block number for a checkpoint name.
// The second return reports whether the checkpoint exists.
func (r *ProgressRepository) Checkpoint(ctx context.Context, name string) (uint64, bool, error) {
	var block uint64
	err := r.db.Pool().QueryRow(ctx,
		`SELECT block_number FROM scan_progress WHERE name = $1`, name,
	).Scan(&block)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint %q: %w", name, err)
	}
	return block, true, nil
}

// SaveCheckpoint writes a checkpoint outside any transaction.
func (r *ProgressRepository) SaveCheckpoint(ctx context.Context, name string, block uint64) error {
	return SaveCheckpointTx(ctx, r.db.Pool(), name, block)
}

// SaveCheckpointTx writes a checkpoint through the given querier, used by the
// ingestion writer so the checkpoint commits atomically with its chunk.
func SaveCheckpointTx(ctx context.Context, q Querier, name string, block uint64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO scan_progress (name, block_number, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET block_number = GREATEST(scan_progress.block_number, EXCLUDED.block_number),
		    updated_at = now()
	`, name, block)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %q: %w", name, err)
	}
	return nil
}

// All returns every stored checkpoint, for progress reporting.
func (r *ProgressRepository) All(ctx context.Context) (map[string]uint64, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT name, block_number FROM scan_progress`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var name string
		var block uint64
		if err := rows.Scan(&name, &block); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		out[name] = block
	}
	return out, rows.Err()
}
