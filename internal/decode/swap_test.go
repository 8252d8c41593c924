package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func twosComplement256(v *big.Int) []byte {
	if v.Sign() >= 0 {
		return common.LeftPadBytes(v.Bytes(), 32)
	}
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	wrapped := new(big.Int).Add(max, v)
	return common.LeftPadBytes(wrapped.Bytes(), 32)
}

func TestDecodeUniswapV2Swap(t *testing.T) {
	var data []byte
	data = append(data, common.LeftPadBytes(big.NewInt(1000).Bytes(), 32)...) // amount0In
	data = append(data, common.LeftPadBytes(big.NewInt(0).Bytes(), 32)...)    // amount1In
	data = append(data, common.LeftPadBytes(big.NewInt(0).Bytes(), 32)...)    // amount0Out
	data = append(data, common.LeftPadBytes(big.NewInt(950).Bytes(), 32)...) // amount1Out

	log := gethtypes.Log{
		Topics: []common.Hash{
			{},
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
		},
		Data: data,
	}

	ev, err := DecodeUniswapV2Swap(log)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), ev.Amount0In)
	require.Equal(t, big.NewInt(0), ev.Amount1In)
	require.Equal(t, big.NewInt(0), ev.Amount0Out)
	require.Equal(t, big.NewInt(950), ev.Amount1Out)
}

func TestDecodeUniswapV3Swap(t *testing.T) {
	amount0 := big.NewInt(1000)
	amount1 := big.NewInt(-950)
	sqrtPriceX96 := new(big.Int).Lsh(big.NewInt(1), 96) // 79228162514264337593543950336
	liquidity := big.NewInt(123456789)
	tick := big.NewInt(-100)

	var data []byte
	data = append(data, twosComplement256(amount0)...)
	data = append(data, twosComplement256(amount1)...)
	data = append(data, common.LeftPadBytes(sqrtPriceX96.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(liquidity.Bytes(), 32)...)
	data = append(data, twosComplement256(tick)...)

	log := gethtypes.Log{
		Topics: []common.Hash{
			{},
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
		},
		Data: data,
	}

	ev, err := DecodeUniswapV3Swap(log)
	require.NoError(t, err)
	// amount0 = 1000 > 0: an output
	require.Equal(t, big.NewInt(0), ev.Amount0In)
	require.Equal(t, amount0, ev.Amount0Out)
	// amount1 = -950 < 0: an input, stored as its absolute value
	require.Equal(t, big.NewInt(950), ev.Amount1In)
	require.Equal(t, big.NewInt(0), ev.Amount1Out)
	require.Equal(t, sqrtPriceX96, ev.SqrtPriceX96)
	require.Equal(t, liquidity, ev.Liquidity)
	require.Equal(t, int32(-100), *ev.Tick)
}

func TestDecodeUniswapV3Swap_DataTooShort(t *testing.T) {
	log := gethtypes.Log{
		Topics: []common.Hash{{}, topicFromAddress("0x1111111111111111111111111111111111111111"), topicFromAddress("0x2222222222222222222222222222222222222222")},
		Data:   make([]byte, 64),
	}
	_, err := DecodeUniswapV3Swap(log)
	require.Error(t, err)
}
