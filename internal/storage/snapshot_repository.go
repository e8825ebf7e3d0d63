package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"github.com/transfer-indexer/internal/types"
)

// SnapshotRepository persists supply snapshots taken by direct contract reads.
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SnapshotInput is one supply capture ready for persistence.
type SnapshotInput struct {
	TotalSupply *big.Int
	Burned      *big.Int
	Locked      *big.Int
	LPHeld      *big.Int
	PriceUSD    string
}

// Insert stores a snapshot and returns its assigned ID.
func (r *SnapshotRepository) Insert(ctx context.Context, in SnapshotInput) (int64, error) {
	priceUSD := in.PriceUSD
	if priceUSD == "" {
		priceUSD = "0"
	}

	var id int64
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO supply_snapshots (total_supply, burned, locked, lp_held, price_usd)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, in.TotalSupply.String(), bigOrZero(in.Burned), bigOrZero(in.Locked),
		bigOrZero(in.LPHeld), priceUSD).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert supply snapshot: %w", err)
	}
	return id, nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (r *SnapshotRepository) Latest(ctx context.Context) (*types.SupplySnapshot, error) {
	var s types.SupplySnapshot
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, taken_at, total_supply::text, burned::text, locked::text, lp_held::text, price_usd::text
		FROM supply_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`).Scan(&s.ID, &s.TakenAt, &s.TotalSupply, &s.Burned, &s.Locked, &s.LPHeld, &s.PriceUSD)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest supply snapshot: %w", err)
	}
	return &s, nil
}

// History returns the most recent snapshots, newest first.
func (r *SnapshotRepository) History(ctx context.Context, limit int) ([]types.SupplySnapshot, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, taken_at, total_supply::text, burned::text, locked::text, lp_held::text, price_usd::text
		FROM supply_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var out []types.SupplySnapshot
	for rows.Next() {
		var s types.SupplySnapshot
		if err := rows.Scan(&s.ID, &s.TakenAt, &s.TotalSupply, &s.Burned, &s.Locked,
			&s.LPHeld, &s.PriceUSD); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func bigOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
