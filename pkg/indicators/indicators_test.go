package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimals(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestCalculateEMA_NotEnoughData(t *testing.T) {
	_, err := CalculateEMA(decimals(1, 2), 3)
	assert.Error(t, err)

	_, err = CalculateEMA(decimals(1, 2), 0)
	assert.Error(t, err)
}

func TestLatestEMA_FlatSeries(t *testing.T) {
	ema, err := LatestEMA(decimals(100, 100, 100, 100, 100), 3)
	require.NoError(t, err)
	f, _ := ema.Float64()
	assert.InDelta(t, 100, f, 1e-9)
}

func TestLatestEMA_WithinWindowBounds(t *testing.T) {
	ema, err := LatestEMA(decimals(90, 95, 100, 105, 110), 3)
	require.NoError(t, err)
	require.True(t, ema.GreaterThanOrEqual(decimal.NewFromInt(90)))
	require.True(t, ema.LessThanOrEqual(decimal.NewFromInt(110)))
}
