package adapter

import (
	"fmt"
	"math/big"
	"strings"

	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
	{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const pairABI = `[
	{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[
		{"name":"reserve0","type":"uint112"},
		{"name":"reserve1","type":"uint112"},
		{"name":"blockTimestampLast","type":"uint32"}
	]},
	{"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// PairReserves holds the reserves of a DEX liquidity pair.
type PairReserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
	Token0   string
}

// TokenReader performs read-only contract calls (supply figures, DEX pair
// reserves) through the client's shared pacing gate and retry loop.
type TokenReader struct {
	client   *Client
	erc20    abi.ABI
	pair     abi.ABI
	contract common.Address
}

// NewTokenReader builds a TokenReader over an existing chain client.
func NewTokenReader(client *Client) (*TokenReader, error) {
	parsedERC20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	parsedPair, err := abi.JSON(strings.NewReader(pairABI))
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	return &TokenReader{
		client:   client,
		erc20:    parsedERC20,
		pair:     parsedPair,
		contract: client.contract,
	}, nil
}

func (r *TokenReader) callContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	msg := ethereum.CallMsg{To: &to, Data: data}
	err := r.client.call(ctx, "eth_call", func(ctx context.Context) error {
		var e error
		out, e = r.client.backend.CallContract(ctx, msg, nil)
		return e
	})
	return out, err
}

// TotalSupply reads the token's total supply.
func (r *TokenReader) TotalSupply(ctx context.Context) (*big.Int, error) {
	data, err := r.erc20.Pack("totalSupply")
	if err != nil {
		return nil, fmt.Errorf("pack totalSupply: %w", err)
	}
	out, err := r.callContract(ctx, r.contract, data)
	if err != nil {
		return nil, err
	}
	results, err := r.erc20.Unpack("totalSupply", out)
	if err != nil {
		return nil, fmt.Errorf("unpack totalSupply: %w", err)
	}
	return abi.ConvertType(results[0], new(big.Int)).(*big.Int), nil
}

// BalanceOf reads the token balance of one holder.
func (r *TokenReader) BalanceOf(ctx context.Context, holder string) (*big.Int, error) {
	data, err := r.erc20.Pack("balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	out, err := r.callContract(ctx, r.contract, data)
	if err != nil {
		return nil, err
	}
	results, err := r.erc20.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return abi.ConvertType(results[0], new(big.Int)).(*big.Int), nil
}

// Reserves reads the current reserves and token0 of a DEX pair contract.
func (r *TokenReader) Reserves(ctx context.Context, pairAddress string) (*PairReserves, error) {
	pair := common.HexToAddress(pairAddress)

	data, err := r.pair.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("pack getReserves: %w", err)
	}
	out, err := r.callContract(ctx, pair, data)
	if err != nil {
		return nil, err
	}
	results, err := r.pair.Unpack("getReserves", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getReserves: %w", err)
	}

	data, err = r.pair.Pack("token0")
	if err != nil {
		return nil, fmt.Errorf("pack token0: %w", err)
	}
	t0Out, err := r.callContract(ctx, pair, data)
	if err != nil {
		return nil, err
	}
	t0Results, err := r.pair.Unpack("token0", t0Out)
	if err != nil {
		return nil, fmt.Errorf("unpack token0: %w", err)
	}
	token0 := abi.ConvertType(t0Results[0], new(common.Address)).(*common.Address)

	return &PairReserves{
		Reserve0: abi.ConvertType(results[0], new(big.Int)).(*big.Int),
		Reserve1: abi.ConvertType(results[1], new(big.Int)).(*big.Int),
		Token0:   strings.ToLower(token0.Hex()),
	}, nil
}
