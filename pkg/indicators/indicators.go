// Package indicators provides smoothing indicators over short price windows.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(prices []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period < 1 {
		return nil, fmt.Errorf("invalid EMA period %d", period)
	}
	if len(prices) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(prices))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(decimalsToFloat64(prices))
	emaFloat := helper.ChanToSlice(ema.Compute(inputChan))

	return float64ToDecimals(emaFloat), nil
}

// LatestEMA returns the most recent EMA value.
func LatestEMA(prices []decimal.Decimal, period int) (decimal.Decimal, error) {
	values, err := CalculateEMA(prices, period)
	if err != nil {
		return decimal.Zero, err
	}
	if len(values) == 0 {
		return decimal.Zero, fmt.Errorf("EMA%d produced no values for %d points", period, len(prices))
	}
	return values[len(values)-1], nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
