// Package simulator owns the simulated material market: tracked materials,
// the name pool they are drawn from and the current selection.
package simulator

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/materialwatch/internal/domain"
)

// ErrNoAvailableNames is returned by AddMaterial once every pool name is in use.
var ErrNoAvailableNames = errors.New("all available materials have been added")

type stepPricer interface {
	Next(price decimal.Decimal) decimal.Decimal
	Initial() decimal.Decimal
}

type namePicker interface {
	Intn(n int) int
}

// Seed initial material tracked from startup.
type Seed struct {
	Name  string
	Price decimal.Decimal
}

// Options market shape.
type Options struct {
	Unit     string
	Window   int
	NamePool []string
	Seeds    []Seed
}

// Engine holds the market state. Every mutation runs under one write lock,
// so readers always see either the state before or after a whole transition.
type Engine struct {
	logger *zap.Logger
	pricer stepPricer
	picker namePicker

	unit     string
	window   int
	namePool []string

	mu        sync.RWMutex
	used      map[string]struct{}
	order     []domain.MaterialID
	materials map[domain.MaterialID]*domain.Material
	selected  domain.MaterialID
	lastID    domain.MaterialID
	updatedAt time.Time
}

// NewEngine creates the market with the seed materials; the first seed is selected.
func NewEngine(logger *zap.Logger, p stepPricer, picker namePicker, opts Options, now time.Time) (*Engine, error) {
	if p == nil || picker == nil {
		return nil, errors.New("pricer and name picker are required")
	}
	if opts.Window < 2 {
		return nil, errors.Errorf("history window must hold at least 2 prices, got %d", opts.Window)
	}
	if len(opts.Seeds) == 0 {
		return nil, errors.New("at least one seed material is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		logger:    logger,
		pricer:    p,
		picker:    picker,
		unit:      opts.Unit,
		window:    opts.Window,
		namePool:  append([]string(nil), opts.NamePool...),
		used:      make(map[string]struct{}),
		materials: make(map[domain.MaterialID]*domain.Material),
		updatedAt: now,
	}

	for i, seed := range opts.Seeds {
		if _, dup := e.used[seed.Name]; dup {
			return nil, errors.Errorf("duplicate seed material %q", seed.Name)
		}
		if !seed.Price.IsPositive() {
			return nil, errors.Errorf("seed material %q must have a positive price", seed.Name)
		}

		id := domain.MaterialID(i + 1)
		m := domain.NewMaterial(id, seed.Name, e.unit, seed.Price, e.window, now)
		e.track(&m)
	}
	e.selected = e.order[0]

	return e, nil
}

// Tick advances every material by one jittered step.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.order {
		m := e.materials[id]
		m.ApplyPrice(e.pricer.Next(m.Price), now)
	}
	e.updatedAt = now
}

// AddMaterial starts tracking a material with a random unused name and a random price.
func (e *Engine) AddMaterial(now time.Time) (domain.Material, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	available := e.availableNames()
	if len(available) == 0 {
		return domain.Material{}, ErrNoAvailableNames
	}

	name := available[e.picker.Intn(len(available))]
	m := domain.NewMaterial(e.nextID(now), name, e.unit, e.pricer.Initial(), e.window, now)
	e.track(&m)
	e.updatedAt = now

	e.logger.Info("material added",
		zap.Int64("id", int64(m.ID)),
		zap.String("name", m.Name),
		zap.String("price", m.Price.StringFixed(2)))

	return m.Clone(), nil
}

// SelectMaterial switches the analysed material. Unknown ids leave the selection as is.
func (e *Engine) SelectMaterial(id domain.MaterialID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.materials[id]; !ok {
		e.logger.Debug("ignoring selection of unknown material", zap.Int64("id", int64(id)))
		return false
	}
	e.selected = id
	return true
}

// Materials returns copies of all tracked materials in insertion order.
func (e *Engine) Materials() []domain.Material {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.materialsLocked()
}

// Material returns a copy of the material with the given id.
func (e *Engine) Material(id domain.MaterialID) (domain.Material, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.materials[id]
	if !ok {
		return domain.Material{}, false
	}
	return m.Clone(), true
}

// SelectedID returns the id of the material selected for analysis.
func (e *Engine) SelectedID() domain.MaterialID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.selected
}

// Selected returns a copy of the material selected for analysis.
func (e *Engine) Selected() domain.Material {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.materials[e.selected].Clone()
}

// AvailableNames lists pool names not yet in use, in pool order.
func (e *Engine) AvailableNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.availableNames()
}

// Snapshot returns a consistent view of the whole market.
func (e *Engine) Snapshot() domain.PriceSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return domain.PriceSnapshot{
		Timestamp:  e.updatedAt,
		SelectedID: e.selected,
		Materials:  e.materialsLocked(),
	}
}

func (e *Engine) materialsLocked() []domain.Material {
	out := make([]domain.Material, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.materials[id].Clone())
	}
	return out
}

func (e *Engine) availableNames() []string {
	var available []string
	for _, name := range e.namePool {
		if _, used := e.used[name]; !used {
			available = append(available, name)
		}
	}
	return available
}

// nextID derives an id from the wall clock, bumped past every id handed out so far.
func (e *Engine) nextID(now time.Time) domain.MaterialID {
	id := domain.MaterialID(now.UnixMilli())
	if id <= e.lastID {
		id = e.lastID + 1
	}
	return id
}

func (e *Engine) track(m *domain.Material) {
	e.materials[m.ID] = m
	e.order = append(e.order, m.ID)
	e.used[m.Name] = struct{}{}
	if m.ID > e.lastID {
		e.lastID = m.ID
	}
}
