// Package decode extracts ERC-20 Transfer events from raw chain logs.
// Decoding is pure: no I/O, no state, trivially testable against fixtures.
package decode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TransferTopic is the keccak256 hash of Transfer(address,address,uint256).
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// Transfer is a single decoded Transfer event, still keyed by raw addresses.
// Surrogate IDs are assigned later by the address resolver.
type Transfer struct {
	TxHash      string
	LogIndex    uint32
	BlockNumber uint64
	From        string
	To          string
	RawAmount   *big.Int
}

// TransferLog decodes one log into a Transfer. The sender and recipient are
// the indexed topics (last 20 bytes of each 32-byte word); the amount is the
// non-indexed data payload parsed as an unsigned big integer.
func TransferLog(log ethtypes.Log) (*Transfer, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("transfer log %s[%d]: expected 3 topics, got %d",
			log.TxHash.Hex(), log.Index, len(log.Topics))
	}
	if log.Topics[0] != TransferTopic {
		return nil, fmt.Errorf("transfer log %s[%d]: unexpected event signature %s",
			log.TxHash.Hex(), log.Index, log.Topics[0].Hex())
	}
	if len(log.Data) != 32 {
		return nil, fmt.Errorf("transfer log %s[%d]: expected 32-byte data payload, got %d bytes",
			log.TxHash.Hex(), log.Index, len(log.Data))
	}

	return &Transfer{
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint32(log.Index),
		BlockNumber: log.BlockNumber,
		From:        topicAddress(log.Topics[1]),
		To:          topicAddress(log.Topics[2]),
		RawAmount:   new(big.Int).SetBytes(log.Data),
	}, nil
}

// topicAddress extracts the address from a 32-byte indexed topic, lowercased.
func topicAddress(topic common.Hash) string {
	addr := common.BytesToAddress(topic.Bytes()[12:])
	return "0x" + common.Bytes2Hex(addr.Bytes())
}
