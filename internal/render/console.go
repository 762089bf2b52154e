// Package render draws the dashboard in a terminal.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/materialwatch/internal/domain"
	"github.com/vadiminshakov/materialwatch/internal/events"
	"github.com/vadiminshakov/materialwatch/internal/services/market/analysis"
)

const (
	// bar heights are divided by this to get a width in terminal cells
	cellsPerUnit      = 6
	lastUpdatedLayout = "3:04:05 PM"
)

var (
	up     = lipgloss.AdaptiveColor{Light: "#2E9E4F", Dark: "#73F59F"}
	down   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF6B6B"}
	muted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#767676"}
	accent = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			Width(30)

	selectedCardStyle = cardStyle.BorderForeground(accent)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(accent).
			Padding(0, 1).
			MarginTop(1)

	noticeStyle = lipgloss.NewStyle().Foreground(down).Bold(true).MarginTop(1)
)

type source interface {
	Snapshot() domain.PriceSnapshot
}

// Console redraws the dashboard on every update.
type Console struct {
	src      source
	analyzer *analysis.TrendAnalyzer
	updates  *events.Broadcaster
	out      io.Writer
	logger   *zap.Logger
	notice   string
}

// NewConsole creates a renderer writing to out.
func NewConsole(src source, updates *events.Broadcaster, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		src:      src,
		analyzer: analysis.NewTrendAnalyzer(logger.Named("analysis")),
		updates:  updates,
		out:      out,
		logger:   logger,
	}
}

// Run draws the current state and then one frame per update until ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	var updates chan events.Update
	if c.updates != nil {
		updates = c.updates.Subscribe()
		defer c.updates.Unsubscribe(updates)
	}

	if err := c.Draw(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Kind == events.KindNotice {
				c.notice = u.Notice
			}
			if err := c.Draw(); err != nil {
				c.logger.Warn("console draw failed", zap.Error(err))
			}
		}
	}
}

// Draw clears the screen and writes one frame built from a single snapshot.
func (c *Console) Draw() error {
	snap := c.src.Snapshot()
	selected, _ := snap.Selected()

	frame := Render(snap, c.analyzer.Analyze(selected), c.notice)
	_, err := fmt.Fprint(c.out, "\033[H\033[2J", frame, "\n")
	return err
}

// Render builds one frame: material cards, then the trend panel of the selected material.
// res must be the analysis of snap's selected material.
func Render(snap domain.PriceSnapshot, res domain.TrendAnalysis, notice string) string {
	cards := make([]string, 0, len(snap.Materials))
	for _, m := range snap.Materials {
		cards = append(cards, card(m, m.ID == snap.SelectedID))
	}

	rows := make([]string, 0, len(cards)/3+1)
	for i := 0; i < len(cards); i += 3 {
		end := min(i+3, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}

	selected, _ := snap.Selected()
	parts := []string{
		titleStyle.Render("Material Price Dashboard"),
		lipgloss.JoinVertical(lipgloss.Left, rows...),
		trendPanel(res, selected.PriceHistory),
	}
	if notice != "" {
		parts = append(parts, noticeStyle.Render(notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func card(m domain.Material, selected bool) string {
	change := m.Change()
	style := cardStyle
	if selected {
		style = selectedCardStyle
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(m.Name),
		fmt.Sprintf("%s / %s", FormatUSD(m.Price), m.Unit),
		statusStyle(change.Status).Render(change.Status.Title() + "  " + FormatDelta(change)),
	}
	if selected {
		lines = append(lines, lipgloss.NewStyle().Foreground(accent).Render("Selected for Analysis"))
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render("Last Updated: "+m.LastUpdated.Format(lastUpdatedLayout)))

	return style.Render(strings.Join(lines, "\n"))
}

func trendPanel(res domain.TrendAnalysis, history []decimal.Decimal) string {
	heights := analysis.BarHeights(res.Normalized, analysis.DefaultBarMin, analysis.DefaultBarMax)

	var b strings.Builder
	fmt.Fprintf(&b, "Price Trend Analysis\nLast %d Updates for: %s   trend: %s\n\n", len(history), res.Name, res.Trend)
	for i, h := range heights {
		price := ""
		if i < len(history) {
			price = "$" + history[i].StringFixed(0)
		}
		bar := strings.Repeat("█", h/cellsPerUnit)
		if i == len(heights)-1 {
			bar = lipgloss.NewStyle().Foreground(accent).Render(bar)
		}
		fmt.Fprintf(&b, "T-%-3d %-8s %s\n", len(heights)-1-i, price, bar)
	}
	fmt.Fprintf(&b, "\nCurrent %s   Average %s   Max %s   Min %s",
		FormatUSD(res.Current), FormatUSD(res.Average), FormatUSD(res.Max), FormatUSD(res.Min))

	return panelStyle.Render(b.String())
}

func statusStyle(s domain.ChangeStatus) lipgloss.Style {
	switch s {
	case domain.ChangeStatusUp:
		return lipgloss.NewStyle().Foreground(up)
	case domain.ChangeStatusDown:
		return lipgloss.NewStyle().Foreground(down)
	default:
		return lipgloss.NewStyle().Foreground(muted)
	}
}

// FormatUSD renders a price as $1,234.56.
func FormatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// FormatDelta renders the change as +$1.20, -$1.20 or $0.00.
func FormatDelta(c domain.PriceChange) string {
	switch c.Status {
	case domain.ChangeStatusUp:
		return "+$" + c.Delta.StringFixed(2)
	case domain.ChangeStatusDown:
		return "-$" + c.Delta.Abs().StringFixed(2)
	default:
		return "$0.00"
	}
}
