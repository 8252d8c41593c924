package logprocessor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/csic-platform/eth-indexer/internal/domain"
)

func TestNormalizedAmount_ERC20Decimals(t *testing.T) {
	raw := decimal.NewFromInt(1_500_000_000_000_000_000) // 1.5 tokens at 18 decimals
	tok := &domain.Token{Decimals: 18}

	got := normalizedAmount(raw, tok, domain.TokenTypeERC20)
	assert.True(t, decimal.NewFromFloat(1.5).Equal(got), "got %s", got)
}

func TestNormalizedAmount_ERC20NoDecimalsMetadata(t *testing.T) {
	raw := decimal.NewFromInt(42)
	got := normalizedAmount(raw, nil, domain.TokenTypeERC20)
	assert.True(t, raw.Equal(got))
}

func TestNormalizedAmount_ERC721AlwaysOne(t *testing.T) {
	raw := decimal.NewFromInt(999) // token id-shaped, irrelevant to normalization
	got := normalizedAmount(raw, nil, domain.TokenTypeERC721)
	assert.True(t, decimal.NewFromInt(1).Equal(got))
}

func TestNormalizedAmount_ERC1155PassesThroughRaw(t *testing.T) {
	raw := decimal.NewFromInt(7)
	got := normalizedAmount(raw, nil, domain.TokenTypeERC1155)
	assert.True(t, raw.Equal(got))
}
