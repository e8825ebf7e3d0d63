package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/transfer-indexer/internal/types"
)

// AddressResolver maps chain addresses to surrogate integer IDs, creating
// unseen addresses lazily. Resolution is bulk: one insert-or-ignore and one
// select per call regardless of how many addresses are passed.
type AddressResolver struct {
	db    *PostgresDB
	cache *addressCache
}

// NewAddressResolver creates a resolver with a bounded in-process cache.
func NewAddressResolver(db *PostgresDB, cacheSize int) *AddressResolver {
	return &AddressResolver{
		db:    db,
		cache: newAddressCache(cacheSize),
	}
}

// Resolve resolves addresses against the pool, outside any transaction.
func (r *AddressResolver) Resolve(ctx context.Context, addresses []string) (map[string]int64, error) {
	return r.resolve(ctx, r.db.Pool(), addresses)
}

// ResolveInTx resolves addresses inside an ingestion transaction, so newly
// created address rows roll back with the chunk that introduced them.
func (r *AddressResolver) ResolveInTx(ctx context.Context, tx pgx.Tx, addresses []string) (map[string]int64, error) {
	return r.resolve(ctx, tx, addresses)
}

func (r *AddressResolver) resolve(ctx context.Context, q Querier, addresses []string) (map[string]int64, error) {
	result := make(map[string]int64, len(addresses))
	var missing []string
	seen := make(map[string]struct{}, len(addresses))

	for _, raw := range addresses {
		addr := types.NormalizeAddress(raw)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		if err := types.ValidateAddress(addr); err != nil {
			return nil, err
		}
		if id, ok := r.cache.get(addr); ok {
			result[addr] = id
			continue
		}
		missing = append(missing, addr)
	}

	if len(missing) == 0 {
		return result, nil
	}

	// Concurrent resolvers may race on the same address; the unique index on
	// addresses(address) makes the insert a no-op for the loser.
	_, err := q.Exec(ctx, `
		INSERT INTO addresses (address)
		SELECT unnest($1::text[])
		ON CONFLICT (address) DO NOTHING
	`, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert addresses: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, address FROM addresses WHERE address = ANY($1)
	`, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to select addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var addr string
		if err := rows.Scan(&id, &addr); err != nil {
			return nil, fmt.Errorf("failed to scan address row: %w", err)
		}
		result[addr] = id
		r.cache.put(addr, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read address rows: %w", err)
	}

	for _, addr := range missing {
		if _, ok := result[addr]; !ok {
			return nil, fmt.Errorf("address %s missing after upsert", addr)
		}
	}

	return result, nil
}

// CacheSize returns the number of cached address mappings.
func (r *AddressResolver) CacheSize() int {
	return r.cache.len()
}
