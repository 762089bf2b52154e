package simulator

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/materialwatch/internal/domain"
	"github.com/vadiminshakov/materialwatch/internal/services/pricer"
)

var _ stepPricer = (*pricer.SimulatePricer)(nil)

var testPool = []string{
	"Zinc Slab", "Nylon Resin", "Titanium Sheet", "Brass Rod",
	"Nickel Alloy", "Polymer Pellets", "Carbon Fiber", "Magnesium Ingot",
	"Stainless Plate", "Silicon Wafer", "Graphite Block", "Tungsten Wire",
}

var testSeeds = []Seed{
	{Name: "Steel Coil", Price: decimal.NewFromInt(5200)},
	{Name: "Aluminum Ingot", Price: decimal.NewFromInt(2850)},
	{Name: "Copper Wire", Price: decimal.NewFromInt(9100)},
}

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *pricer.SimulatePricer) {
	t.Helper()
	rnd := rand.New(rand.NewSource(1))
	p, err := pricer.NewSimulatePricer(
		rnd,
		decimal.RequireFromString("0.025"),
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(2000),
		decimal.NewFromInt(10000),
	)
	require.NoError(t, err)

	e, err := NewEngine(zap.NewNop(), p, rnd, Options{
		Unit:     "ton",
		Window:   5,
		NamePool: testPool,
		Seeds:    testSeeds,
	}, start)
	require.NoError(t, err)
	return e, p
}

func TestNewEngine_SeedScenario(t *testing.T) {
	e, _ := newTestEngine(t)

	materials := e.Materials()
	require.Len(t, materials, 3)

	for i, seed := range testSeeds {
		m := materials[i]
		assert.Equal(t, seed.Name, m.Name)
		assert.Equal(t, "ton", m.Unit)
		assert.True(t, m.Price.Equal(seed.Price))
		assert.True(t, m.PreviousPrice.Equal(seed.Price))
		require.Len(t, m.PriceHistory, 5)
		for _, p := range m.PriceHistory {
			assert.True(t, p.Equal(seed.Price))
		}
	}
	assert.Equal(t, materials[0].ID, e.SelectedID())
	assert.Equal(t, "Steel Coil", e.Selected().Name)
}

func TestNewEngine_Validation(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	p, err := pricer.NewSimulatePricer(rnd, decimal.RequireFromString("0.025"), decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(2))
	require.NoError(t, err)

	tests := []struct {
		name string
		opts Options
	}{
		{name: "no seeds", opts: Options{Window: 5}},
		{name: "window too small", opts: Options{Window: 1, Seeds: testSeeds}},
		{
			name: "duplicate seed",
			opts: Options{Window: 5, Seeds: []Seed{testSeeds[0], testSeeds[0]}},
		},
		{
			name: "zero seed price",
			opts: Options{Window: 5, Seeds: []Seed{{Name: "Steel Coil", Price: decimal.Zero}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(zap.NewNop(), p, rnd, tt.opts, start)
			assert.Error(t, err)
		})
	}
}

func TestEngine_Tick(t *testing.T) {
	e, p := newTestEngine(t)
	now := start

	for step := 0; step < 50; step++ {
		before := e.Materials()
		now = now.Add(2 * time.Second)

		e.Tick(now)

		after := e.Materials()
		require.Len(t, after, len(before))
		for i := range after {
			old, cur := before[i], after[i]
			require.Equal(t, old.ID, cur.ID)
			require.Len(t, cur.PriceHistory, 5)

			assert.True(t, cur.PreviousPrice.Equal(old.Price), "previous price must be the pre-tick price")

			lo, hi := p.Bounds(old.Price)
			assert.True(t, cur.Price.GreaterThanOrEqual(lo) && cur.Price.LessThanOrEqual(hi),
				"step %d: %s outside [%s, %s]", step, cur.Price, lo, hi)
			assert.True(t, cur.Price.Equal(cur.Price.Round(2)))

			for j := 0; j < 4; j++ {
				assert.True(t, cur.PriceHistory[j].Equal(old.PriceHistory[j+1]))
			}
			assert.True(t, cur.PriceHistory[4].Equal(cur.Price))
			assert.Equal(t, now, cur.LastUpdated)
		}
	}
}

func TestEngine_AddMaterialExhaustsPool(t *testing.T) {
	e, _ := newTestEngine(t)
	seen := map[string]bool{"Steel Coil": true, "Aluminum Ingot": true, "Copper Wire": true}
	ids := map[domain.MaterialID]bool{1: true, 2: true, 3: true}

	for i := 0; i < len(testPool); i++ {
		m, err := e.AddMaterial(start)
		require.NoError(t, err)

		assert.False(t, seen[m.Name], "name %q handed out twice", m.Name)
		seen[m.Name] = true
		assert.False(t, ids[m.ID], "id %d reused", m.ID)
		ids[m.ID] = true

		assert.True(t, m.Price.GreaterThanOrEqual(decimal.NewFromInt(2000)))
		assert.True(t, m.Price.LessThanOrEqual(decimal.NewFromInt(10000)))
		assert.True(t, m.Price.Equal(m.PreviousPrice))
		require.Len(t, m.PriceHistory, 5)
		for _, p := range m.PriceHistory {
			assert.True(t, p.Equal(m.Price))
		}
	}
	assert.Empty(t, e.AvailableNames())

	before := e.Snapshot()
	_, err := e.AddMaterial(start)
	assert.ErrorIs(t, err, ErrNoAvailableNames)

	after := e.Snapshot()
	assert.Len(t, after.Materials, 15)
	assert.Equal(t, len(before.Materials), len(after.Materials))
}

func TestEngine_AddMaterialKeepsInsertionOrder(t *testing.T) {
	e, _ := newTestEngine(t)

	added, err := e.AddMaterial(start.Add(time.Second))
	require.NoError(t, err)

	materials := e.Materials()
	require.Len(t, materials, 4)
	assert.Equal(t, added.ID, materials[3].ID)
	assert.Equal(t, domain.MaterialID(start.Add(time.Second).UnixMilli()), added.ID)
}

func TestEngine_IDsStayUniqueWithinOneMillisecond(t *testing.T) {
	e, _ := newTestEngine(t)
	now := start.Add(time.Minute)

	first, err := e.AddMaterial(now)
	require.NoError(t, err)
	second, err := e.AddMaterial(now)
	require.NoError(t, err)

	assert.Equal(t, first.ID+1, second.ID)
}

func TestEngine_SelectMaterial(t *testing.T) {
	e, _ := newTestEngine(t)
	materials := e.Materials()

	assert.True(t, e.SelectMaterial(materials[2].ID))
	assert.Equal(t, materials[2].ID, e.SelectedID())

	assert.False(t, e.SelectMaterial(424242))
	assert.Equal(t, materials[2].ID, e.SelectedID())
}

func TestEngine_ReturnsCopies(t *testing.T) {
	e, _ := newTestEngine(t)

	materials := e.Materials()
	materials[0].PriceHistory[0] = decimal.NewFromInt(1)
	materials[0].Price = decimal.NewFromInt(1)

	fresh, ok := e.Material(materials[0].ID)
	require.True(t, ok)
	assert.True(t, fresh.Price.Equal(decimal.NewFromInt(5200)))
	assert.True(t, fresh.PriceHistory[0].Equal(decimal.NewFromInt(5200)))
}

func TestEngine_ReadersNeverSeeTornTicks(t *testing.T) {
	e, _ := newTestEngine(t)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := e.Snapshot()
				for _, m := range snap.Materials {
					if !m.LastUpdated.Equal(snap.Materials[0].LastUpdated) {
						t.Errorf("torn snapshot: %s vs %s", m.LastUpdated, snap.Materials[0].LastUpdated)
						return
					}
				}
			}
		}()
	}

	now := start
	for i := 0; i < 200; i++ {
		now = now.Add(time.Millisecond)
		e.Tick(now)
	}
	close(done)
	wg.Wait()
}
