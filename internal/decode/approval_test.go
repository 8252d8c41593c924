package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestDecodeApproval(t *testing.T) {
	value := big.NewInt(5_000_000)
	log := gethtypes.Log{
		Topics: []common.Hash{
			{},
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
		},
		Data: common.LeftPadBytes(value.Bytes(), 32),
	}

	ev, err := DecodeApproval(log)
	require.NoError(t, err)
	require.Equal(t, "0x1111111111111111111111111111111111111111", ev.Owner)
	require.Equal(t, "0x2222222222222222222222222222222222222222", ev.Spender)
	require.Equal(t, value, ev.Value)
}

func TestDecodeApproval_TooFewTopics(t *testing.T) {
	log := gethtypes.Log{Topics: []common.Hash{{}}}
	_, err := DecodeApproval(log)
	require.Error(t, err)
}
