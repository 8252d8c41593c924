package blockprocessor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveGasPrice_Legacy(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(50_000_000_000),
		Gas:      21000,
		To:       nil,
		Value:    big.NewInt(0),
	})
	block := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(100)})

	got := effectiveGasPrice(tx, block)
	assert.Equal(t, big.NewInt(50_000_000_000), got)
}

func TestEffectiveGasPrice_DynamicFeeUnderCap(t *testing.T) {
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     1,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(100_000_000_000),
		Gas:       21000,
		Value:     big.NewInt(0),
	})
	block := types.NewBlockWithHeader(&types.Header{
		Number:  big.NewInt(100),
		BaseFee: big.NewInt(30_000_000_000),
	})

	got := effectiveGasPrice(tx, block)
	// baseFee + tip = 32 gwei, below the 100 gwei cap, so that wins.
	assert.Equal(t, big.NewInt(32_000_000_000), got)
}

func TestEffectiveGasPrice_DynamicFeeCapped(t *testing.T) {
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     1,
		GasTipCap: big.NewInt(5_000_000_000),
		GasFeeCap: big.NewInt(40_000_000_000),
		Gas:       21000,
		Value:     big.NewInt(0),
	})
	block := types.NewBlockWithHeader(&types.Header{
		Number:  big.NewInt(100),
		BaseFee: big.NewInt(50_000_000_000),
	})

	got := effectiveGasPrice(tx, block)
	// baseFee + tip = 55 gwei, above the 40 gwei cap, so the cap wins.
	assert.Equal(t, big.NewInt(40_000_000_000), got)
}

func TestEffectiveGasPrice_NoBaseFeeFallsBackToGasPrice(t *testing.T) {
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     1,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(10_000_000_000),
		Gas:       21000,
		Value:     big.NewInt(0),
	})
	block := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(100)})

	got := effectiveGasPrice(tx, block)
	require.NotNil(t, got)
	assert.Equal(t, tx.GasPrice(), got)
}
