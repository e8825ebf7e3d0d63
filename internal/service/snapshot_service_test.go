package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transfer-indexer/internal/adapter"
	"github.com/transfer-indexer/internal/config"
	"github.com/transfer-indexer/internal/storage"
	"github.com/transfer-indexer/internal/types"
)

const testToken = "0x1111111111111111111111111111111111111111"

type fakeSupplyReader struct {
	totalSupply *big.Int
	balances    map[string]*big.Int
	reserves    *adapter.PairReserves
}

func (f *fakeSupplyReader) TotalSupply(ctx context.Context) (*big.Int, error) {
	return f.totalSupply, nil
}

func (f *fakeSupplyReader) BalanceOf(ctx context.Context, holder string) (*big.Int, error) {
	if b, ok := f.balances[holder]; ok {
		return b, nil
	}
	return new(big.Int), nil
}

func (f *fakeSupplyReader) Reserves(ctx context.Context, pairAddress string) (*adapter.PairReserves, error) {
	return f.reserves, nil
}

type fakeSnapshotStore struct {
	inserted []storage.SnapshotInput
	latest   *types.SupplySnapshot
}

func (f *fakeSnapshotStore) Insert(ctx context.Context, in storage.SnapshotInput) (int64, error) {
	f.inserted = append(f.inserted, in)
	f.latest = &types.SupplySnapshot{
		ID:          int64(len(f.inserted)),
		TakenAt:     time.Now().UTC(),
		TotalSupply: in.TotalSupply.String(),
		Burned:      in.Burned.String(),
		Locked:      in.Locked.String(),
		LPHeld:      in.LPHeld.String(),
		PriceUSD:    "0",
	}
	return f.latest.ID, nil
}

func (f *fakeSnapshotStore) Latest(ctx context.Context) (*types.SupplySnapshot, error) {
	return f.latest, nil
}

func (f *fakeSnapshotStore) History(ctx context.Context, limit int) ([]types.SupplySnapshot, error) {
	if f.latest == nil {
		return nil, nil
	}
	return []types.SupplySnapshot{*f.latest}, nil
}

func TestTakeSnapshotSumsBurnAndLockerBalances(t *testing.T) {
	reader := &fakeSupplyReader{
		totalSupply: big.NewInt(1_000_000),
		balances: map[string]*big.Int{
			"0x000000000000000000000000000000000000dead": big.NewInt(100_000),
			"0x0000000000000000000000000000000000000000": big.NewInt(50_000),
			"0x2222222222222222222222222222222222222222": big.NewInt(30_000),
		},
	}
	store := &fakeSnapshotStore{}
	cfg := config.SnapshotConfig{
		BurnAddresses: []string{
			"0x000000000000000000000000000000000000dead",
			"0x0000000000000000000000000000000000000000",
		},
		LockerAddresses: []string{"0x2222222222222222222222222222222222222222"},
	}

	svc := NewSnapshotService(reader, store, cfg, testToken, statsLogger())
	snap, err := svc.Take(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1000000", snap.TotalSupply)
	assert.Equal(t, "150000", snap.Burned)
	assert.Equal(t, "30000", snap.Locked)
	assert.Equal(t, "0", snap.LPHeld)
}

func TestTakeSnapshotPicksTokenSideOfPair(t *testing.T) {
	cfg := config.SnapshotConfig{
		LPPairAddress: "0x3333333333333333333333333333333333333333",
	}

	cases := []struct {
		name   string
		token0 string
		want   string
	}{
		{"tracked token is token0", testToken, "700"},
		{"tracked token is token1", "0x9999999999999999999999999999999999999999", "900"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &fakeSupplyReader{
				totalSupply: big.NewInt(1000),
				reserves: &adapter.PairReserves{
					Reserve0: big.NewInt(700),
					Reserve1: big.NewInt(900),
					Token0:   tc.token0,
				},
			}
			store := &fakeSnapshotStore{}
			svc := NewSnapshotService(reader, store, cfg, testToken, statsLogger())

			snap, err := svc.Take(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, snap.LPHeld)
		})
	}
}

func TestCirculatingSupply(t *testing.T) {
	snap := &types.SupplySnapshot{
		TotalSupply: "1000000",
		Burned:      "150000",
		Locked:      "30000",
	}
	circ, err := CirculatingSupply(snap)
	require.NoError(t, err)
	assert.Equal(t, "820000", circ.String())
}

func TestCirculatingSupplyRejectsMalformedFigures(t *testing.T) {
	_, err := CirculatingSupply(&types.SupplySnapshot{TotalSupply: "abc", Burned: "0", Locked: "0"})
	require.Error(t, err)
}
