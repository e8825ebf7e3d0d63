// Package adapter wraps the remote JSON-RPC chain endpoint. All calls pass
// through a single pacing gate and an indefinite retry-with-backoff loop for
// transient failures; fatal failures surface immediately.
package adapter

import (
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/transfer-indexer/internal/config"
	"github.com/transfer-indexer/internal/decode"
	apperrors "github.com/transfer-indexer/internal/errors"
	"github.com/transfer-indexer/internal/logging"
)

// ChainClient is the chain surface the scanner depends on.
type ChainClient interface {
	// HeadBlock retrieves the current chain height.
	HeadBlock(ctx context.Context) (uint64, error)

	// TransferLogs retrieves Transfer logs for the token contract in [from, to].
	TransferLogs(ctx context.Context, from, to uint64) ([]ethtypes.Log, error)

	// BlockTimestamp retrieves the timestamp of a block, cached per block number.
	BlockTimestamp(ctx context.Context, number uint64) (time.Time, error)

	// Close closes the underlying connection.
	Close()
}

// ethBackend abstracts the underlying ethclient.Client for testing.
type ethBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Client implements ChainClient over a JSON-RPC endpoint.
type Client struct {
	backend  ethBackend
	contract common.Address

	// limiter is the global pacing gate: one token per MinCallInterval,
	// shared by every logical operation so bursts cannot exceed the
	// provider's rate limit.
	limiter     *rate.Limiter
	backoff     Backoff
	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *logging.Logger

	tsMu      sync.Mutex
	tsCache   map[uint64]time.Time
	tsLimit   int
	tsCleared uint64
}

// Dial connects to the configured RPC endpoint. A failed dial is fatal:
// there is nothing to retry against at startup.
func Dial(ctx context.Context, cfg *config.ChainConfig, logger *logging.Logger) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, apperrors.NewFatal("dial rpc endpoint", err)
	}
	return NewClient(backend, cfg, logger), nil
}

// NewClient builds a Client over an existing backend (tests inject fakes here).
func NewClient(backend ethBackend, cfg *config.ChainConfig, logger *logging.Logger) *Client {
	minInterval := cfg.MinCallInterval
	if minInterval <= 0 {
		minInterval = 100 * time.Millisecond
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	tsLimit := cfg.TimestampCacheLimit
	if tsLimit <= 0 {
		tsLimit = 4096
	}

	return &Client{
		backend:     backend,
		contract:    common.HexToAddress(cfg.TokenContract),
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
		backoff:     Backoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
		callTimeout: callTimeout,
		sleep:       sleepCtx,
		logger:      logger,
		tsCache:     make(map[uint64]time.Time),
		tsLimit:     tsLimit,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs one RPC operation through the pacing gate, retrying transient
// failures with exponential backoff until success, a fatal error, or caller
// cancellation. Transient errors never escape this loop.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		err := fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A result-limit rejection means the queried range is too wide, not
		// that the process is broken: hand it back unwrapped so the scanner
		// shrinks the chunk and retries.
		if apperrors.IsResultLimit(err) {
			return err
		}
		if !apperrors.IsTransient(err) {
			return apperrors.NewFatal(op, err)
		}

		delay := c.backoff.Delay(attempt)
		c.logger.WithFields(map[string]any{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		}).Warn("transient rpc error, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// HeadBlock retrieves the current chain height.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var e error
		head, e = c.backend.BlockNumber(ctx)
		return e
	})
	return head, err
}

// TransferLogs retrieves Transfer logs emitted by the token contract
// within [from, to] inclusive.
func (c *Client) TransferLogs(ctx context.Context, from, to uint64) ([]ethtypes.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{decode.TransferTopic}},
	}

	var logs []ethtypes.Log
	err := c.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		var e error
		logs, e = c.backend.FilterLogs(ctx, query)
		return e
	})
	return logs, err
}

// BlockTimestamp retrieves a block's timestamp. Lookups are heavily reused
// within one scan chunk, so results are cached per block number; the cache is
// cleared wholesale once it exceeds its high-water mark since distant chunks
// never revisit old blocks.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (time.Time, error) {
	c.tsMu.Lock()
	if ts, ok := c.tsCache[number]; ok {
		c.tsMu.Unlock()
		return ts, nil
	}
	c.tsMu.Unlock()

	var header *ethtypes.Header
	err := c.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var e error
		header, e = c.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return e
	})
	if err != nil {
		return time.Time{}, err
	}
	if header == nil {
		return time.Time{}, apperrors.NewTransient("eth_getBlockByNumber", stderrors.New("missing header"))
	}

	ts := time.Unix(int64(header.Time), 0).UTC()

	c.tsMu.Lock()
	if len(c.tsCache) >= c.tsLimit {
		c.tsCache = make(map[uint64]time.Time)
		c.tsCleared++
	}
	c.tsCache[number] = ts
	c.tsMu.Unlock()

	return ts, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.backend.Close()
}
