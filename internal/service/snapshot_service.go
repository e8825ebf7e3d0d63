package service

import (
	"context"
	"math/big"

	"github.com/transfer-indexer/internal/adapter"
	"github.com/transfer-indexer/internal/config"
	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/storage"
	"github.com/transfer-indexer/internal/types"
)

// SupplyReader performs the read-only contract calls a snapshot needs.
type SupplyReader interface {
	TotalSupply(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, holder string) (*big.Int, error)
	Reserves(ctx context.Context, pairAddress string) (*adapter.PairReserves, error)
}

// SnapshotStore persists and reads supply snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, in storage.SnapshotInput) (int64, error)
	Latest(ctx context.Context) (*types.SupplySnapshot, error)
	History(ctx context.Context, limit int) ([]types.SupplySnapshot, error)
}

// SnapshotService captures point-in-time supply figures by direct contract
// reads: total supply, burned and locked balances, and LP-held reserves.
// Snapshots are independent of the transfer ledger.
type SnapshotService struct {
	reader SupplyReader
	store  SnapshotStore
	cfg    config.SnapshotConfig
	token  string
	logger *logging.Logger
}

// NewSnapshotService creates a snapshot service. token is the tracked token
// contract, used to pick the right side of the LP pair reserves.
func NewSnapshotService(reader SupplyReader, store SnapshotStore,
	cfg config.SnapshotConfig, token string, logger *logging.Logger) *SnapshotService {
	return &SnapshotService{
		reader: reader,
		store:  store,
		cfg:    cfg,
		token:  types.NormalizeAddress(token),
		logger: logger,
	}
}

// Take captures one snapshot and persists it.
func (s *SnapshotService) Take(ctx context.Context) (*types.SupplySnapshot, error) {
	totalSupply, err := s.reader.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}

	burned, err := s.sumBalances(ctx, s.cfg.BurnAddresses)
	if err != nil {
		return nil, err
	}
	locked, err := s.sumBalances(ctx, s.cfg.LockerAddresses)
	if err != nil {
		return nil, err
	}

	lpHeld := new(big.Int)
	if s.cfg.LPPairAddress != "" {
		lpHeld, err = s.pairHoldings(ctx)
		if err != nil {
			return nil, err
		}
	}

	id, err := s.store.Insert(ctx, storage.SnapshotInput{
		TotalSupply: totalSupply,
		Burned:      burned,
		Locked:      locked,
		LPHeld:      lpHeld,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]any{
		"snapshot_id":  id,
		"total_supply": totalSupply.String(),
		"burned":       burned.String(),
		"locked":       locked.String(),
		"lp_held":      lpHeld.String(),
	}).Info("supply snapshot taken")

	return s.store.Latest(ctx)
}

// Latest returns the most recent snapshot, or nil when none exist.
func (s *SnapshotService) Latest(ctx context.Context) (*types.SupplySnapshot, error) {
	return s.store.Latest(ctx)
}

// History returns recent snapshots, newest first.
func (s *SnapshotService) History(ctx context.Context, limit int) ([]types.SupplySnapshot, error) {
	return s.store.History(ctx, limit)
}

// CirculatingSupply computes total supply minus burned and locked holdings
// from a snapshot.
func CirculatingSupply(s *types.SupplySnapshot) (*big.Int, error) {
	total, err := types.ParseRawAmount(s.TotalSupply)
	if err != nil {
		return nil, err
	}
	burned, err := types.ParseRawAmount(s.Burned)
	if err != nil {
		return nil, err
	}
	locked, err := types.ParseRawAmount(s.Locked)
	if err != nil {
		return nil, err
	}

	out := new(big.Int).Sub(total, burned)
	out.Sub(out, locked)
	return out, nil
}

func (s *SnapshotService) sumBalances(ctx context.Context, holders []string) (*big.Int, error) {
	sum := new(big.Int)
	for _, holder := range holders {
		balance, err := s.reader.BalanceOf(ctx, holder)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, balance)
	}
	return sum, nil
}

// pairHoldings reads the tracked token's side of the LP pair reserves.
func (s *SnapshotService) pairHoldings(ctx context.Context) (*big.Int, error) {
	reserves, err := s.reader.Reserves(ctx, s.cfg.LPPairAddress)
	if err != nil {
		return nil, err
	}
	if reserves.Token0 == s.token {
		return reserves.Reserve0, nil
	}
	return reserves.Reserve1, nil
}
