package domain

import "github.com/shopspring/decimal"

// TrendDirection direction of the price window, newest point against the oldest.
type TrendDirection string

const (
	TrendDirectionUpward   TrendDirection = "Upward"
	TrendDirectionDownward TrendDirection = "Downward"
	TrendDirectionStable   TrendDirection = "Stable"
)

// TrendAnalysis derived statistics over one material's price window.
type TrendAnalysis struct {
	MaterialID MaterialID      `json:"material_id"`
	Name       string          `json:"name"`
	Current    decimal.Decimal `json:"current"`
	Max        decimal.Decimal `json:"max"`
	Min        decimal.Decimal `json:"min"`
	// Range is max-min, or 1 when the window is flat.
	Range    decimal.Decimal `json:"range"`
	Average  decimal.Decimal `json:"average"`
	Smoothed decimal.Decimal `json:"smoothed"`
	Trend    TrendDirection  `json:"trend"`
	Change   PriceChange     `json:"change"`
	// Normalized holds (price-min)/range per history point, oldest first.
	Normalized []decimal.Decimal `json:"normalized"`
}
