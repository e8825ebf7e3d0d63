package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/transfer-indexer/internal/types"
)

// TransferRepository reads the transfers table. All writes go through the
// ingestion writer; transfers are immutable once committed.
type TransferRepository struct {
	db *PostgresDB
}

// NewTransferRepository creates a new transfer repository.
func NewTransferRepository(db *PostgresDB) *TransferRepository {
	return &TransferRepository{db: db}
}

// MaxBlockNumber returns the highest ingested block, used as a resume
// fallback when no checkpoint exists. The second return reports whether any
// transfers exist at all.
func (r *TransferRepository) MaxBlockNumber(ctx context.Context) (uint64, bool, error) {
	var block *uint64
	err := r.db.Pool().QueryRow(ctx,
		`SELECT MAX(block_number) FROM transfers`,
	).Scan(&block)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to read max block: %w", err)
	}
	if block == nil {
		return 0, false, nil
	}
	return *block, true, nil
}

// Count returns the total number of ingested transfers.
func (r *TransferRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transfers: %w", err)
	}
	return n, nil
}

// AddressCount returns the number of distinct addresses seen in transfers.
func (r *TransferRepository) AddressCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM addresses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}
	return n, nil
}

// HolderBalances rebuilds every holder's net balance wholesale from the
// transfers table: inbound minus outbound raw amounts per address. The result
// is a projection, never stored back.
func (r *TransferRepository) HolderBalances(ctx context.Context) ([]types.HolderBalance, error) {
	return r.holderBalances(ctx, 0)
}

// TopHolders returns the highest net balances, largest first.
func (r *TransferRepository) TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.holderBalances(ctx, limit)
}

func (r *TransferRepository) holderBalances(ctx context.Context, limit int) ([]types.HolderBalance, error) {
	query := `
		SELECT a.id, a.address, SUM(f.amount)::text AS balance
		FROM (
			SELECT to_id AS addr_id, raw_amount AS amount FROM transfers
			UNION ALL
			SELECT from_id, -raw_amount FROM transfers
		) f
		JOIN addresses a ON a.id = f.addr_id
		GROUP BY a.id, a.address
		ORDER BY SUM(f.amount) DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holder balances: %w", err)
	}
	defer rows.Close()

	var out []types.HolderBalance
	for rows.Next() {
		var hb types.HolderBalance
		if err := rows.Scan(&hb.AddressID, &hb.Address, &hb.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan holder balance: %w", err)
		}
		out = append(out, hb)
	}
	return out, rows.Err()
}

// DailyAuditRow is one day of transfer activity.
type DailyAuditRow struct {
	Day       time.Time `json:"day"`
	Transfers int64     `json:"transfers"`
	Volume    string    `json:"volume"`
}

// DailyAudit aggregates transfer count and raw volume per day over the most
// recent N days of ingested data.
func (r *TransferRepository) DailyAudit(ctx context.Context, days int) ([]DailyAuditRow, error) {
	if days <= 0 {
		days = 30
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT date_trunc('day', block_time) AS day,
		       COUNT(*) AS transfers,
		       SUM(raw_amount)::text AS volume
		FROM transfers
		WHERE block_time >= date_trunc('day', now()) - make_interval(days => $1)
		GROUP BY 1
		ORDER BY 1 DESC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily audit: %w", err)
	}
	defer rows.Close()

	var out []DailyAuditRow
	for rows.Next() {
		var row DailyAuditRow
		if err := rows.Scan(&row.Day, &row.Transfers, &row.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily audit row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Recent returns the most recently ingested transfers, newest first.
func (r *TransferRepository) Recent(ctx context.Context, limit int) ([]types.Transfer, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT tx_hash, log_index, block_number, block_time, from_id, to_id, raw_amount::text
		FROM transfers
		ORDER BY block_number DESC, log_index DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transfers: %w", err)
	}
	defer rows.Close()

	var out []types.Transfer
	for rows.Next() {
		var t types.Transfer
		if err := rows.Scan(&t.TxHash, &t.LogIndex, &t.BlockNumber, &t.BlockTime,
			&t.FromID, &t.ToID, &t.RawAmount); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
