package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/csic-platform/eth-indexer/internal/domain"
)

func topicFromAddress(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

func TestDecodeTransfer_ERC20(t *testing.T) {
	amount := big.NewInt(1_500_000)
	data := common.LeftPadBytes(amount.Bytes(), 32)

	log := gethtypes.Log{
		Topics: []common.Hash{
			{}, // topic0, unused by DecodeTransfer itself
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
		},
		Data: data,
	}

	ev, err := DecodeTransfer(log)
	require.NoError(t, err)
	require.Equal(t, domain.TokenTypeERC20, ev.TokenType)
	require.Equal(t, "0x1111111111111111111111111111111111111111", ev.From)
	require.Equal(t, "0x2222222222222222222222222222222222222222", ev.To)
	require.Nil(t, ev.TokenID)
	require.Equal(t, amount, ev.Amount)
}

func TestDecodeTransfer_ERC721(t *testing.T) {
	tokenID := big.NewInt(42)
	log := gethtypes.Log{
		Topics: []common.Hash{
			{},
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
			common.BigToHash(tokenID),
		},
	}

	ev, err := DecodeTransfer(log)
	require.NoError(t, err)
	require.Equal(t, domain.TokenTypeERC721, ev.TokenType)
	require.Equal(t, tokenID, ev.TokenID)
	require.Equal(t, big.NewInt(1), ev.Amount)
}

func TestDecodeTransfer_TooFewTopics(t *testing.T) {
	log := gethtypes.Log{Topics: []common.Hash{{}}}
	_, err := DecodeTransfer(log)
	require.Error(t, err)
}

func TestDecodeERC1155Single(t *testing.T) {
	tokenID := big.NewInt(7)
	amount := big.NewInt(3)
	data := append(common.LeftPadBytes(tokenID.Bytes(), 32), common.LeftPadBytes(amount.Bytes(), 32)...)

	log := gethtypes.Log{
		Topics: []common.Hash{
			{}, // topic0
			topicFromAddress("0x3333333333333333333333333333333333333333"), // operator
			topicFromAddress("0x1111111111111111111111111111111111111111"), // from
			topicFromAddress("0x2222222222222222222222222222222222222222"), // to
		},
		Data: data,
	}

	ev, err := DecodeERC1155Single(log)
	require.NoError(t, err)
	require.Equal(t, domain.TokenTypeERC1155, ev.TokenType)
	require.Equal(t, "0x1111111111111111111111111111111111111111", ev.From)
	require.Equal(t, "0x2222222222222222222222222222222222222222", ev.To)
	require.Equal(t, tokenID, ev.TokenID)
	require.Equal(t, amount, ev.Amount)
}

func TestDecodeERC1155Batch(t *testing.T) {
	ids := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	amounts := []*big.Int{big.NewInt(10), big.NewInt(20), big.NewInt(30)}

	args := abi.Arguments{{Type: uint256ArrayType}, {Type: uint256ArrayType}}
	packed, err := args.Pack(ids, amounts)
	require.NoError(t, err)

	log := gethtypes.Log{
		Topics: []common.Hash{
			{},
			topicFromAddress("0x3333333333333333333333333333333333333333"),
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
		},
		Data: packed,
	}

	ev, err := DecodeERC1155Batch(log)
	require.NoError(t, err)
	require.Len(t, ev.BatchItems, 3)
	for i, item := range ev.BatchItems {
		require.Equal(t, ids[i], item.TokenID)
		require.Equal(t, amounts[i], item.Amount)
	}
}

func TestBatchLogIndex(t *testing.T) {
	require.Equal(t, uint(5000), BatchLogIndex(5, 0))
	require.Equal(t, uint(5002), BatchLogIndex(5, 2))
}
