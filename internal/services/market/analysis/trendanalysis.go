// Package analysis derives trend statistics from a material's price window.
package analysis

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/materialwatch/internal/domain"
	"github.com/vadiminshakov/materialwatch/pkg/indicators"
)

const (
	averagePrecision = 2
	smoothingPeriod  = 3

	// default visual height range for chart bars, in renderer units.
	DefaultBarMin = 30
	DefaultBarMax = 180
)

// TrendAnalyzer computes derived statistics for the selected material.
// Analyze is pure: it never mutates the material and keeps no state between calls.
type TrendAnalyzer struct {
	logger *zap.Logger
}

// NewTrendAnalyzer creates a new TrendAnalyzer instance.
func NewTrendAnalyzer(logger *zap.Logger) *TrendAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrendAnalyzer{logger: logger}
}

// Analyze summarizes the material's price window.
func (a *TrendAnalyzer) Analyze(m domain.Material) domain.TrendAnalysis {
	history := m.PriceHistory
	result := domain.TrendAnalysis{
		MaterialID: m.ID,
		Name:       m.Name,
		Current:    m.Price,
		Change:     m.Change(),
		Trend:      domain.TrendDirectionStable,
		Range:      decimal.NewFromInt(1),
		Normalized: []decimal.Decimal{},
	}
	if len(history) == 0 {
		a.logger.Warn("empty price history", zap.Int64("material_id", int64(m.ID)))
		return result
	}

	maxPrice := decimal.Max(history[0], history[1:]...)
	minPrice := decimal.Min(history[0], history[1:]...)

	priceRange := maxPrice.Sub(minPrice)
	if priceRange.IsZero() {
		priceRange = decimal.NewFromInt(1)
	}

	average := decimal.Sum(history[0], history[1:]...).
		Div(decimal.NewFromInt(int64(len(history)))).
		Round(averagePrecision)

	normalized := make([]decimal.Decimal, len(history))
	for i, p := range history {
		normalized[i] = p.Sub(minPrice).Div(priceRange)
	}

	result.Max = maxPrice
	result.Min = minPrice
	result.Range = priceRange
	result.Average = average
	result.Smoothed = a.smoothed(history, average)
	result.Trend = Trend(history)
	result.Normalized = normalized

	return result
}

func (a *TrendAnalyzer) smoothed(history []decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	period := smoothingPeriod
	if len(history) < period {
		period = len(history)
	}

	ema, err := indicators.LatestEMA(history, period)
	if err != nil {
		a.logger.Debug("smoothing unavailable, using average", zap.Error(err))
		return fallback
	}
	return ema.Round(averagePrecision)
}

// Trend compares the newest price with the oldest one.
func Trend(history []decimal.Decimal) domain.TrendDirection {
	if len(history) < 2 {
		return domain.TrendDirectionStable
	}

	oldest, newest := history[0], history[len(history)-1]
	switch {
	case newest.GreaterThan(oldest):
		return domain.TrendDirectionUpward
	case newest.LessThan(oldest):
		return domain.TrendDirectionDownward
	default:
		return domain.TrendDirectionStable
	}
}

// BarHeights maps normalized ratios onto [lo, hi] display units.
func BarHeights(normalized []decimal.Decimal, lo, hi int) []int {
	span := decimal.NewFromInt(int64(hi - lo))
	heights := make([]int, len(normalized))
	for i, r := range normalized {
		heights[i] = lo + int(r.Mul(span).Round(0).IntPart())
	}
	return heights
}
