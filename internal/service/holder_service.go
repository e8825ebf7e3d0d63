// Package service implements the read-side business logic behind the
// dashboard API: holder balance projections, aggregate statistics, and
// supply snapshots. Services never write to the transfers table.
package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/transfer-indexer/internal/storage"
	"github.com/transfer-indexer/internal/types"
)

// BalanceReader is the repository surface the holder service reads from.
type BalanceReader interface {
	HolderBalances(ctx context.Context) ([]types.HolderBalance, error)
	TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error)
}

// HolderService derives per-address net balances from the transfer ledger.
// Balances are a projection: rebuilt wholesale from transfers, never stored.
type HolderService struct {
	balances BalanceReader
}

// NewHolderService creates a new holder service.
func NewHolderService(balances BalanceReader) *HolderService {
	return &HolderService{balances: balances}
}

// TopHolders returns the highest net balances, largest first.
func (s *HolderService) TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error) {
	return s.balances.TopHolders(ctx, limit)
}

// RebuildBalances returns every holder's net balance.
func (s *HolderService) RebuildBalances(ctx context.Context) ([]types.HolderBalance, error) {
	return s.balances.HolderBalances(ctx)
}

// VerifyConservation checks that all net balances sum to zero. Every transfer
// credits and debits the same amount, so any nonzero total means the ledger
// or the projection is corrupt.
func (s *HolderService) VerifyConservation(ctx context.Context) error {
	balances, err := s.balances.HolderBalances(ctx)
	if err != nil {
		return err
	}
	sum, err := SumBalances(balances)
	if err != nil {
		return err
	}
	if sum.Sign() != 0 {
		return &types.ServiceError{
			Code:    "CONSERVATION_VIOLATED",
			Message: fmt.Sprintf("holder balances sum to %s, expected 0", sum.String()),
		}
	}
	return nil
}

// NetBalances computes per-address net balances from a transfer list:
// inbound raw amounts minus outbound raw amounts, keyed by address ID.
func NetBalances(transfers []types.Transfer) (map[int64]*big.Int, error) {
	balances := make(map[int64]*big.Int)
	credit := func(id int64) *big.Int {
		b, ok := balances[id]
		if !ok {
			b = new(big.Int)
			balances[id] = b
		}
		return b
	}

	for _, t := range transfers {
		amount, err := t.Amount()
		if err != nil {
			return nil, fmt.Errorf("transfer %s[%d]: %w", t.TxHash, t.LogIndex, err)
		}
		credit(t.ToID).Add(credit(t.ToID), amount)
		credit(t.FromID).Sub(credit(t.FromID), amount)
	}
	return balances, nil
}

// SumBalances totals a balance list as big integers.
func SumBalances(balances []types.HolderBalance) (*big.Int, error) {
	sum := new(big.Int)
	for _, hb := range balances {
		v, ok := new(big.Int).SetString(hb.Balance, 10)
		if !ok {
			return nil, &types.ServiceError{
				Code:    "INVALID_BALANCE",
				Message: fmt.Sprintf("holder %s has unparseable balance %q", hb.Address, hb.Balance),
			}
		}
		sum.Add(sum, v)
	}
	return sum, nil
}

var _ BalanceReader = (*storage.TransferRepository)(nil)
