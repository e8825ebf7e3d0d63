package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureLog(from, to string, amount *big.Int) ethtypes.Log {
	return ethtypes.Log{
		Address: common.HexToAddress("0x55d398326f99059ff775485246999027b3197955"),
		Topics: []common.Hash{
			TransferTopic,
			common.HexToHash("0x000000000000000000000000" + from[2:]),
			common.HexToHash("0x000000000000000000000000" + to[2:]),
		},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: 32100000,
		TxHash:      common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Index:       7,
	}
}

func TestTransferLog(t *testing.T) {
	from := "0x1111111111111111111111111111111111111111"
	to := "0x2222222222222222222222222222222222222222"

	tr, err := TransferLog(fixtureLog(from, to, big.NewInt(1500)))
	require.NoError(t, err)

	assert.Equal(t, from, tr.From)
	assert.Equal(t, to, tr.To)
	assert.Equal(t, "1500", tr.RawAmount.String())
	assert.Equal(t, uint64(32100000), tr.BlockNumber)
	assert.Equal(t, uint32(7), tr.LogIndex)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", tr.TxHash)
}

func TestTransferLogLowercasesAddresses(t *testing.T) {
	// Topics carry raw bytes; the decoded form must be the lowercase hex string.
	tr, err := TransferLog(fixtureLog(
		"0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
		"0x2222222222222222222222222222222222222222",
		big.NewInt(1)))
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", tr.From)
}

func TestTransferLogHugeAmount(t *testing.T) {
	// Base-unit amounts for 18-decimal tokens exceed 64-bit range.
	amount, ok := new(big.Int).SetString("123456789012345678901234", 10)
	require.True(t, ok)

	tr, err := TransferLog(fixtureLog(
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		amount))
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234", tr.RawAmount.String())
}

func TestTransferLogMalformed(t *testing.T) {
	base := fixtureLog(
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		big.NewInt(10))

	t.Run("missing topics", func(t *testing.T) {
		log := base
		log.Topics = log.Topics[:2]
		_, err := TransferLog(log)
		assert.Error(t, err)
	})

	t.Run("wrong signature", func(t *testing.T) {
		log := base
		log.Topics = []common.Hash{
			common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"),
			log.Topics[1], log.Topics[2],
		}
		_, err := TransferLog(log)
		assert.Error(t, err)
	})

	t.Run("truncated data", func(t *testing.T) {
		log := base
		log.Data = log.Data[:16]
		_, err := TransferLog(log)
		assert.Error(t, err)
	})

	t.Run("zero amount is valid", func(t *testing.T) {
		log := fixtureLog(
			"0x1111111111111111111111111111111111111111",
			"0x2222222222222222222222222222222222222222",
			big.NewInt(0))
		tr, err := TransferLog(log)
		require.NoError(t, err)
		assert.Equal(t, "0", tr.RawAmount.String())
	})
}
