package pricer

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const pricePrecision = 2

var (
	half = decimal.NewFromFloat(0.5)
	two  = decimal.NewFromInt(2)
)

// SimulatePricer produces jittered prices for the simulated market.
// It is not safe for concurrent use; callers serialize access.
type SimulatePricer struct {
	rnd        RandomSource
	volatility decimal.Decimal
	floor      decimal.Decimal
	initialMin decimal.Decimal
	initialMax decimal.Decimal
}

// NewSimulatePricer creates a pricer moving prices by at most ±volatility per step
// and drawing initial prices from [initialMin, initialMax]. Prices never drop below floor.
func NewSimulatePricer(rnd RandomSource, volatility, floor, initialMin, initialMax decimal.Decimal) (*SimulatePricer, error) {
	if rnd == nil {
		return nil, errors.New("random source is required")
	}
	if volatility.IsNegative() || volatility.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.Errorf("volatility must be in [0, 1), got %s", volatility)
	}
	if floor.IsNegative() {
		return nil, errors.Errorf("price floor must not be negative, got %s", floor)
	}
	if initialMin.LessThan(floor) || initialMax.LessThan(initialMin) {
		return nil, errors.Errorf("invalid initial price range [%s, %s]", initialMin, initialMax)
	}

	return &SimulatePricer{
		rnd:        rnd,
		volatility: volatility,
		floor:      floor,
		initialMin: initialMin,
		initialMax: initialMax,
	}, nil
}

// ChangePercent draws a relative change in [-volatility, +volatility).
func (p *SimulatePricer) ChangePercent() decimal.Decimal {
	u := decimal.NewFromFloat(p.rnd.Float64())
	return u.Sub(half).Mul(p.volatility.Mul(two))
}

// Next returns the price after one simulation step, rounded to cents.
func (p *SimulatePricer) Next(price decimal.Decimal) decimal.Decimal {
	return p.Apply(price, p.ChangePercent())
}

// Apply moves price by change and rounds the result to cents.
func (p *SimulatePricer) Apply(price, change decimal.Decimal) decimal.Decimal {
	next := price.Mul(decimal.NewFromInt(1).Add(change)).Round(pricePrecision)
	if next.LessThan(p.floor) {
		return p.floor
	}
	return next
}

// Initial draws a starting price uniformly from the configured range.
func (p *SimulatePricer) Initial() decimal.Decimal {
	u := decimal.NewFromFloat(p.rnd.Float64())
	span := p.initialMax.Sub(p.initialMin)
	return p.initialMin.Add(span.Mul(u)).Round(pricePrecision)
}

// Bounds returns the lowest and highest price a single step from price can produce.
func (p *SimulatePricer) Bounds(price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	return p.Apply(price, p.volatility.Neg()), p.Apply(price, p.volatility)
}
