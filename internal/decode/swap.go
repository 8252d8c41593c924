package decode

import (
	"fmt"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// SwapEvent is a decoded Uniswap V2/SushiSwap or Uniswap V3 Swap event.
// The four amount fields are directional (in/out per side), matching
// the on-chain event's own layout for V2 and the sign-split convention
// used for V3's signed amount0/amount1. SqrtPriceX96/Liquidity/Tick are
// V3-only and nil for V2.
type SwapEvent struct {
	Sender       string
	Recipient    string
	Amount0In    *big.Int
	Amount1In    *big.Int
	Amount0Out   *big.Int
	Amount1Out   *big.Int
	SqrtPriceX96 *big.Int // V3 only, nil for V2
	Liquidity    *big.Int // V3 only, nil for V2
	Tick         *int32   // V3 only, nil for V2
}

// DecodeUniswapV2Swap decodes a V2-family Swap(amount0In, amount1In,
// amount0Out, amount1Out, to) event from its 128-byte data payload. The
// four amounts are stored directly as emitted, with no netting.
func DecodeUniswapV2Swap(log gethtypes.Log) (*SwapEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("v2 swap log has too few topics (%d)", len(log.Topics))
	}
	if len(log.Data) < 128 {
		return nil, fmt.Errorf("v2 swap log data too short (%d bytes)", len(log.Data))
	}

	sender := topicAddress(log.Topics[1].Hex())
	recipient := topicAddress(log.Topics[2].Hex())

	amount0In := new(big.Int).SetBytes(log.Data[0:32])
	amount1In := new(big.Int).SetBytes(log.Data[32:64])
	amount0Out := new(big.Int).SetBytes(log.Data[64:96])
	amount1Out := new(big.Int).SetBytes(log.Data[96:128])

	return &SwapEvent{
		Sender: sender, Recipient: recipient,
		Amount0In: amount0In, Amount1In: amount1In,
		Amount0Out: amount0Out, Amount1Out: amount1Out,
	}, nil
}

// DecodeUniswapV3Swap decodes a V3 Swap(amount0, amount1, sqrtPriceX96,
// liquidity, tick) event. amount0/amount1/tick are signed two's
// complement integers; sqrtPriceX96/liquidity are unsigned. The signed
// amounts are split into directional in/out columns: a negative amount
// is an input (stored as its absolute value), a positive amount is an
// output.
func DecodeUniswapV3Swap(log gethtypes.Log) (*SwapEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("v3 swap log has too few topics (%d)", len(log.Topics))
	}
	if len(log.Data) < 160 {
		return nil, fmt.Errorf("v3 swap log data too short (%d bytes)", len(log.Data))
	}

	sender := topicAddress(log.Topics[1].Hex())
	recipient := topicAddress(log.Topics[2].Hex())

	amount0 := decodeSigned256(log.Data[0:32])
	amount1 := decodeSigned256(log.Data[32:64])
	sqrtPriceX96 := new(big.Int).SetBytes(log.Data[64:96])
	liquidity := new(big.Int).SetBytes(log.Data[96:128])
	tick := int32(decodeSigned256(log.Data[128:160]).Int64())

	amount0In, amount0Out := splitSigned(amount0)
	amount1In, amount1Out := splitSigned(amount1)

	return &SwapEvent{
		Sender: sender, Recipient: recipient,
		Amount0In: amount0In, Amount1In: amount1In,
		Amount0Out: amount0Out, Amount1Out: amount1Out,
		SqrtPriceX96: sqrtPriceX96, Liquidity: liquidity, Tick: &tick,
	}, nil
}

// splitSigned maps a signed amount to its directional in/out pair: a
// negative amount is an input (absolute value), a non-negative amount
// is an output.
func splitSigned(amount *big.Int) (in, out *big.Int) {
	if amount.Sign() < 0 {
		return new(big.Int).Abs(amount), big.NewInt(0)
	}
	return big.NewInt(0), amount
}

// decodeSigned256 interprets a 32-byte big-endian word as a two's
// complement signed 256-bit integer.
func decodeSigned256(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word)
	if len(word) == 32 && word[0]&0x80 != 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		v.Sub(v, max)
	}
	return v
}
