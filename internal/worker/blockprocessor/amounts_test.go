package blockprocessor

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeValueUSD(t *testing.T) {
	oneEth := weiToDecimal(big.NewInt(1_000_000_000_000_000_000))

	got := computeValueUSD(oneEth, 3000)
	require.NotNil(t, got)
	assert.True(t, decimal.NewFromInt(3000).Equal(*got), "got %s", got)
}

func TestComputeValueUSD_NoPriceIsNil(t *testing.T) {
	oneEth := weiToDecimal(big.NewInt(1_000_000_000_000_000_000))
	assert.Nil(t, computeValueUSD(oneEth, 0))
}
