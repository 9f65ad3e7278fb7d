package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/trackpilot/revsync/internal/config"
)

func testNormalizer() *Normalizer {
	return NewStatic(config.RatesConfig{
		Settlement: "BRL",
		Rates: map[string]float64{
			"USD": 5.0,
			"EUR": 6.0,
		},
	}, nil)
}

func TestNormalize_Identity(t *testing.T) {
	n := testNormalizer()

	conv := n.Normalize(decimal.NewFromFloat(199.90), "BRL")

	assert.True(t, conv.Amount.Equal(decimal.NewFromFloat(199.90)))
	assert.True(t, conv.Rate.Equal(decimal.NewFromInt(1)))
	assert.False(t, conv.Converted)
	assert.True(t, conv.KnownRate)
	assert.Equal(t, "BRL", conv.Currency)
}

func TestNormalize_KnownCurrency(t *testing.T) {
	n := testNormalizer()

	conv := n.Normalize(decimal.NewFromInt(100), "USD")

	assert.True(t, conv.Amount.Equal(decimal.NewFromInt(500)))
	assert.True(t, conv.Rate.Equal(decimal.NewFromInt(5)))
	assert.True(t, conv.Converted)
	assert.True(t, conv.KnownRate)
	assert.Equal(t, "USD", conv.OriginalCurrency)
	assert.True(t, conv.OriginalAmount.Equal(decimal.NewFromInt(100)))
}

func TestNormalize_UnknownCurrencyDefaultsToOne(t *testing.T) {
	n := testNormalizer()

	conv := n.Normalize(decimal.NewFromInt(100), "JPY")

	assert.True(t, conv.Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, conv.Rate.Equal(decimal.NewFromInt(1)))
	assert.True(t, conv.Converted)
	assert.False(t, conv.KnownRate)
}

func TestNormalize_EmptyCodeTreatedAsSettlement(t *testing.T) {
	n := testNormalizer()

	conv := n.Normalize(decimal.NewFromInt(42), "")

	assert.False(t, conv.Converted)
	assert.True(t, conv.Amount.Equal(decimal.NewFromInt(42)))
}

func TestNormalize_CaseInsensitiveCode(t *testing.T) {
	n := testNormalizer()

	conv := n.Normalize(decimal.NewFromInt(10), "usd")

	assert.True(t, conv.Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, conv.KnownRate)
}
