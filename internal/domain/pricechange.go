package domain

import "github.com/shopspring/decimal"

// ChangeStatus direction of the latest price move.
type ChangeStatus string

const (
	ChangeStatusUp     ChangeStatus = "up"
	ChangeStatusDown   ChangeStatus = "down"
	ChangeStatusStable ChangeStatus = "stable"
)

// Title returns a human-readable representation.
func (s ChangeStatus) Title() string {
	switch s {
	case ChangeStatusUp:
		return "↑ Up"
	case ChangeStatusDown:
		return "↓ Down"
	default:
		return "— Stable"
	}
}

// PriceChange status and delta between two consecutive prices.
type PriceChange struct {
	Status ChangeStatus    `json:"status"`
	Delta  decimal.Decimal `json:"delta"`
}

// NewPriceChange classifies current against previous.
func NewPriceChange(current, previous decimal.Decimal) PriceChange {
	status := ChangeStatusStable
	switch {
	case current.GreaterThan(previous):
		status = ChangeStatusUp
	case current.LessThan(previous):
		status = ChangeStatusDown
	}

	return PriceChange{
		Status: status,
		Delta:  current.Sub(previous),
	}
}
