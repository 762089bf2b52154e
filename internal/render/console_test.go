package render

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/materialwatch/internal/domain"
	"github.com/vadiminshakov/materialwatch/internal/events"
	"github.com/vadiminshakov/materialwatch/internal/services/market/analysis"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testMaterials() []domain.Material {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	steel := domain.NewMaterial(1, "Steel Coil", "ton", dec("5200"), 5, now)
	steel.ApplyPrice(dec("5330"), now)
	copper := domain.NewMaterial(3, "Copper Wire", "ton", dec("9100"), 5, now)
	copper.ApplyPrice(dec("9000.5"), now)
	alu := domain.NewMaterial(2, "Aluminum Ingot", "ton", dec("2850"), 5, now)
	return []domain.Material{steel, alu, copper}
}

func testSnapshot() domain.PriceSnapshot {
	return domain.PriceSnapshot{SelectedID: 1, Materials: testMaterials()}
}

// tickingSource moves the market on every read, so a frame mixing two reads shows torn data.
type tickingSource struct {
	mu    sync.Mutex
	reads int
	snap  domain.PriceSnapshot
}

func (f *tickingSource) Snapshot() domain.PriceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	out := f.snap
	out.Materials = make([]domain.Material, len(f.snap.Materials))
	for i := range f.snap.Materials {
		out.Materials[i] = f.snap.Materials[i].Clone()
		m := &f.snap.Materials[i]
		m.ApplyPrice(m.Price.Add(dec("100")), m.LastUpdated)
	}
	return out
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"999.5", "$999.50"},
		{"5200", "$5,200.00"},
		{"1234567.891", "$1,234,567.89"},
		{"-2500.1", "-$2,500.10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUSD(dec(tt.in)))
		})
	}
}

func TestFormatDelta(t *testing.T) {
	assert.Equal(t, "+$130.00", FormatDelta(domain.NewPriceChange(dec("5330"), dec("5200"))))
	assert.Equal(t, "-$99.50", FormatDelta(domain.NewPriceChange(dec("9000.5"), dec("9100"))))
	assert.Equal(t, "$0.00", FormatDelta(domain.NewPriceChange(dec("2850"), dec("2850"))))
}

func TestRender_ContainsCardsAndTrend(t *testing.T) {
	snap := testSnapshot()
	res := analysis.NewTrendAnalyzer(nil).Analyze(snap.Materials[0])

	out := Render(snap, res, "All available materials have been added!")

	for _, want := range []string{
		"Steel Coil", "Aluminum Ingot", "Copper Wire",
		"$5,330.00 / ton", "↑ Up", "+$130.00",
		"↓ Down", "-$99.50", "— Stable",
		"Selected for Analysis", "Last Updated: 12:00:00 PM",
		"Price Trend Analysis", "Last 5 Updates for: Steel Coil",
		"trend: Upward", "T-0", "T-4", "$5330", "Average $5,226.00",
		"All available materials have been added!",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 1, strings.Count(out, "Selected for Analysis"))
}

func TestConsole_DrawUsesOneSnapshot(t *testing.T) {
	src := &tickingSource{snap: testSnapshot()}
	var buf syncBuffer

	require.NoError(t, NewConsole(src, nil, &buf, nil).Draw())

	assert.Equal(t, 1, src.reads)
	out := string(buf.Bytes())
	assert.Contains(t, out, "$5,330.00 / ton")
	assert.Contains(t, out, "Current $5,330.00")
	assert.NotContains(t, out, "5,430.00")
}

func TestConsole_RedrawsOnUpdate(t *testing.T) {
	src := &tickingSource{snap: testSnapshot()}
	updates := events.NewBroadcaster(4)
	var buf syncBuffer

	c := NewConsole(src, updates, &buf, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return updates.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	updates.Publish(events.Update{Kind: events.KindNotice, Notice: "pool exhausted"})

	require.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("pool exhausted"))
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
