// Package domain defines core data structures used throughout the price dashboard.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaterialID stable identifier of a tracked material.
type MaterialID int64

// Material tracked commodity with its rolling price window.
type Material struct {
	ID            MaterialID        `json:"id"`
	Name          string            `json:"name"`
	Price         decimal.Decimal   `json:"price"`
	PreviousPrice decimal.Decimal   `json:"previous_price"`
	Unit          string            `json:"unit"`
	PriceHistory  []decimal.Decimal `json:"price_history"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// NewMaterial creates a material whose history window is filled with the initial price.
func NewMaterial(id MaterialID, name, unit string, price decimal.Decimal, window int, now time.Time) Material {
	history := make([]decimal.Decimal, window)
	for i := range history {
		history[i] = price
	}

	return Material{
		ID:            id,
		Name:          name,
		Price:         price,
		PreviousPrice: price,
		Unit:          unit,
		PriceHistory:  history,
		LastUpdated:   now,
	}
}

// ApplyPrice records a new price: the current one becomes previous,
// the oldest history point is dropped and the new one appended.
func (m *Material) ApplyPrice(price decimal.Decimal, now time.Time) {
	m.PreviousPrice = m.Price
	m.Price = price

	if len(m.PriceHistory) > 0 {
		copy(m.PriceHistory, m.PriceHistory[1:])
		m.PriceHistory[len(m.PriceHistory)-1] = price
	}

	m.LastUpdated = now
}

// Change returns the direction and size of the latest price move.
func (m Material) Change() PriceChange {
	return NewPriceChange(m.Price, m.PreviousPrice)
}

// Clone returns a deep copy safe to hand out to readers.
func (m Material) Clone() Material {
	history := make([]decimal.Decimal, len(m.PriceHistory))
	copy(history, m.PriceHistory)
	m.PriceHistory = history

	return m
}
