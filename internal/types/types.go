// Package types defines the core domain types shared across the indexer.
package types

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Checkpoint names used by the two scanning modes.
const (
	CheckpointBackfill = "last_backfilled_block"
	CheckpointLive     = "last_indexed_block"
)

// EVM address pattern (0x followed by 40 hexadecimal characters)
var addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Transaction hash pattern (0x followed by 64 hexadecimal characters)
var txHashRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

// ValidateAddress validates an EVM address format.
func ValidateAddress(address string) error {
	if !addressRegex.MatchString(address) {
		return &ServiceError{
			Code:    "INVALID_ADDRESS_FORMAT",
			Message: fmt.Sprintf("invalid address format: %s (must be 0x followed by 40 hexadecimal characters)", address),
			Details: map[string]any{"address": address},
		}
	}
	return nil
}

// NormalizeAddress lowercases an address for storage and lookup.
// Address rows are keyed by the lowercase form only.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}

// ValidateTxHash validates a transaction hash format.
func ValidateTxHash(hash string) error {
	if !txHashRegex.MatchString(hash) {
		return &ServiceError{
			Code:    "INVALID_TX_HASH",
			Message: fmt.Sprintf("invalid transaction hash: %s", hash),
			Details: map[string]any{"hash": hash},
		}
	}
	return nil
}

// Transfer is one decoded ERC-20 Transfer event as stored.
// RawAmount is the base-unit token quantity as a decimal string; 18-decimal
// token amounts routinely exceed 64-bit range, so it is never carried as a
// native integer or float.
type Transfer struct {
	TxHash      string    `json:"txHash"`
	LogIndex    uint32    `json:"logIndex"`
	BlockNumber uint64    `json:"blockNumber"`
	BlockTime   time.Time `json:"blockTime"`
	FromID      int64     `json:"fromId"`
	ToID        int64     `json:"toId"`
	RawAmount   string    `json:"rawAmount"`
}

// Amount parses the raw amount into a big integer.
func (t *Transfer) Amount() (*big.Int, error) {
	return ParseRawAmount(t.RawAmount)
}

// ParseRawAmount parses a base-unit decimal string into a big integer.
func ParseRawAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, &ServiceError{
			Code:    "INVALID_RAW_AMOUNT",
			Message: fmt.Sprintf("invalid raw amount: %q", s),
		}
	}
	return v, nil
}

// HolderBalance is the derived per-address net balance. It is a rebuildable
// projection of the transfers table, never independently authoritative.
type HolderBalance struct {
	AddressID int64  `json:"addressId"`
	Address   string `json:"address"`
	Balance   string `json:"balance"`
}

// SupplySnapshot is a point-in-time capture of supply figures obtained by
// direct contract reads, not by transfer aggregation.
type SupplySnapshot struct {
	ID          int64     `json:"id"`
	TakenAt     time.Time `json:"takenAt"`
	TotalSupply string    `json:"totalSupply"`
	Burned      string    `json:"burned"`
	Locked      string    `json:"locked"`
	LPHeld      string    `json:"lpHeld"`
	PriceUSD    string    `json:"priceUsd"`
}

// ServiceError represents a structured application error.
type ServiceError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
