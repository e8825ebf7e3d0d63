package service

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transfer-indexer/internal/types"
)

type fakeBalanceReader struct {
	balances []types.HolderBalance
	err      error
}

func (f *fakeBalanceReader) HolderBalances(ctx context.Context) ([]types.HolderBalance, error) {
	return f.balances, f.err
}

func (f *fakeBalanceReader) TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error) {
	if limit < len(f.balances) {
		return f.balances[:limit], f.err
	}
	return f.balances, f.err
}

func mkTransfer(i int, from, to int64, amount string) types.Transfer {
	return types.Transfer{
		TxHash:    fmt.Sprintf("0x%064x", i),
		LogIndex:  0,
		BlockTime: time.Now(),
		FromID:    from,
		ToID:      to,
		RawAmount: amount,
	}
}

func TestNetBalances(t *testing.T) {
	transfers := []types.Transfer{
		mkTransfer(1, 1, 2, "100"),
		mkTransfer(2, 2, 3, "40"),
		mkTransfer(3, 3, 1, "10"),
	}

	balances, err := NetBalances(transfers)
	require.NoError(t, err)

	assert.Equal(t, "-90", balances[1].String())
	assert.Equal(t, "60", balances[2].String())
	assert.Equal(t, "30", balances[3].String())
}

func TestNetBalancesRejectsMalformedAmount(t *testing.T) {
	_, err := NetBalances([]types.Transfer{mkTransfer(1, 1, 2, "not-a-number")})
	require.Error(t, err)
}

func TestNetBalancesHandlesAmountsBeyondInt64(t *testing.T) {
	huge := "123456789012345678901234567890"
	balances, err := NetBalances([]types.Transfer{mkTransfer(1, 1, 2, huge)})
	require.NoError(t, err)
	assert.Equal(t, huge, balances[2].String())
	assert.Equal(t, "-"+huge, balances[1].String())
}

// Every transfer debits and credits the same amount, so net balances always
// sum to zero regardless of the transfer set.
func TestNetBalancesConservationProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genTransfer := gopter.CombineGens(
		gen.Int64Range(1, 50),
		gen.Int64Range(1, 50),
		gen.UInt64(),
	).Map(func(vals []any) types.Transfer {
		return types.Transfer{
			TxHash:    fmt.Sprintf("0x%064x", vals[2]),
			FromID:    vals[0].(int64),
			ToID:      vals[1].(int64),
			RawAmount: new(big.Int).SetUint64(vals[2].(uint64)).String(),
		}
	})

	properties.Property("net balances sum to zero", prop.ForAll(
		func(transfers []types.Transfer) bool {
			balances, err := NetBalances(transfers)
			if err != nil {
				return false
			}
			sum := new(big.Int)
			for _, b := range balances {
				sum.Add(sum, b)
			}
			return sum.Sign() == 0
		},
		gen.SliceOf(genTransfer),
	))

	properties.TestingRun(t)
}

func TestVerifyConservation(t *testing.T) {
	svc := NewHolderService(&fakeBalanceReader{balances: []types.HolderBalance{
		{AddressID: 1, Address: "0xaa", Balance: "-150"},
		{AddressID: 2, Address: "0xbb", Balance: "100"},
		{AddressID: 3, Address: "0xcc", Balance: "50"},
	}})
	require.NoError(t, svc.VerifyConservation(context.Background()))
}

func TestVerifyConservationDetectsCorruption(t *testing.T) {
	svc := NewHolderService(&fakeBalanceReader{balances: []types.HolderBalance{
		{AddressID: 1, Address: "0xaa", Balance: "100"},
		{AddressID: 2, Address: "0xbb", Balance: "-40"},
	}})
	err := svc.VerifyConservation(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONSERVATION_VIOLATED")
}

func TestSumBalancesRejectsGarbage(t *testing.T) {
	_, err := SumBalances([]types.HolderBalance{{Address: "0xaa", Balance: "12x"}})
	require.Error(t, err)
}
