package internal

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/materialwatch/config"
	"github.com/vadiminshakov/materialwatch/internal/domain"
	"github.com/vadiminshakov/materialwatch/internal/events"
	"github.com/vadiminshakov/materialwatch/internal/services/market/analysis"
	"github.com/vadiminshakov/materialwatch/internal/services/market/simulator"
	"github.com/vadiminshakov/materialwatch/internal/services/pricer"
	"github.com/vadiminshakov/materialwatch/pkg/retrier"
)

const (
	journalRetries       = 2
	journalRetryInterval = 10 * time.Millisecond
)

type priceJournal interface {
	Save(snapshot domain.PriceSnapshot) (uint64, error)
}

// Dashboard owns the simulated market and the timer driving it.
// Tick, AddMaterial and SelectMaterial are the only ways to change market state.
type Dashboard struct {
	Config config.Config

	engine   *simulator.Engine
	analyzer *analysis.TrendAnalyzer
	journal  priceJournal
	retry    *retrier.Retrier
	updates  *events.Broadcaster
	logger   *zap.Logger
	session  string
	now      func() time.Time

	// recordMu keeps journal order equal to snapshot order.
	recordMu sync.Mutex
}

// NewDashboard creates the market from configuration and journals its initial state.
// journal and updates may be nil.
func NewDashboard(conf config.Config, logger *zap.Logger, journal priceJournal, updates *events.Broadcaster) (*Dashboard, error) {
	return newDashboard(conf, logger, journal, updates, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

func newDashboard(
	conf config.Config,
	logger *zap.Logger,
	journal priceJournal,
	updates *events.Broadcaster,
	rnd *rand.Rand,
	now func() time.Time,
) (*Dashboard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	simPricer, err := pricer.NewSimulatePricer(rnd, conf.PriceVolatility, conf.MinPrice, conf.InitialPriceMin, conf.InitialPriceMax)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create simulate pricer")
	}

	seeds := make([]simulator.Seed, 0, len(conf.Seeds))
	for _, s := range conf.Seeds {
		seeds = append(seeds, simulator.Seed{Name: s.Name, Price: s.Price})
	}

	engine, err := simulator.NewEngine(logger.Named("simulator"), simPricer, rnd, simulator.Options{
		Unit:     conf.Unit,
		Window:   conf.HistoryWindowSize,
		NamePool: conf.NamePool,
		Seeds:    seeds,
	}, now())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create market simulator")
	}

	retry := retrier.New(
		retrier.WithMaxRetries(journalRetries),
		retrier.WithInitialInterval(journalRetryInterval),
		retrier.WithMaxInterval(4*journalRetryInterval),
		retrier.WithOnRetry(func(attempt int, err error) {
			logger.Warn("Retrying price journal write", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	d := &Dashboard{
		Config:   conf,
		engine:   engine,
		analyzer: analysis.NewTrendAnalyzer(logger.Named("analysis")),
		journal:  journal,
		retry:    retry,
		updates:  updates,
		logger:   logger,
		session:  uuid.New().String(),
		now:      now,
	}
	d.record()

	return d, nil
}

// Run ticks the market every Config.TickInterval until ctx is cancelled.
// The ticker is stopped before Run returns.
func (d *Dashboard) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Config.TickInterval)
	defer ticker.Stop()

	d.logger.Info("Starting price updates",
		zap.String("session", d.session),
		zap.Duration("tick_interval", d.Config.TickInterval))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Context done, stopping price updates.")
			return ctx.Err()
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Tick advances all material prices by one step.
func (d *Dashboard) Tick() {
	d.engine.Tick(d.now())
	d.record()
}

// AddMaterial starts tracking a new material. When the name pool is exhausted a notice
// is published and simulator.ErrNoAvailableNames returned.
func (d *Dashboard) AddMaterial() (domain.Material, error) {
	m, err := d.engine.AddMaterial(d.now())
	if err != nil {
		if errors.Is(err, simulator.ErrNoAvailableNames) {
			d.logger.Info("Name pool exhausted, material not added")
			d.notify("All available materials have been added!")
		}
		return domain.Material{}, err
	}

	d.record()
	return m, nil
}

// SelectMaterial picks the material to analyse. Unknown ids are ignored.
func (d *Dashboard) SelectMaterial(id domain.MaterialID) bool {
	if !d.engine.SelectMaterial(id) {
		return false
	}
	d.record()
	return true
}

// Materials returns all tracked materials in display order.
func (d *Dashboard) Materials() []domain.Material {
	return d.engine.Materials()
}

// SelectedID returns the id of the analysed material.
func (d *Dashboard) SelectedID() domain.MaterialID {
	return d.engine.SelectedID()
}

// Snapshot returns a consistent view of the market.
func (d *Dashboard) Snapshot() domain.PriceSnapshot {
	snap := d.engine.Snapshot()
	snap.Session = d.session
	return snap
}

// AnalyzeSelected returns trend statistics for the selected material.
func (d *Dashboard) AnalyzeSelected() domain.TrendAnalysis {
	return d.analyzer.Analyze(d.engine.Selected())
}

// Analyze returns trend statistics for the material with the given id.
func (d *Dashboard) Analyze(id domain.MaterialID) (domain.TrendAnalysis, bool) {
	m, ok := d.engine.Material(id)
	if !ok {
		return domain.TrendAnalysis{}, false
	}
	return d.analyzer.Analyze(m), true
}

// Session identifies this process run.
func (d *Dashboard) Session() string {
	return d.session
}

// Updates returns the broadcaster renderers subscribe to; nil when not configured.
func (d *Dashboard) Updates() *events.Broadcaster {
	return d.updates
}

// record journals the current state and tells subscribers about it.
// A journal write that still fails after retries is logged and does not stop the market.
func (d *Dashboard) record() {
	d.recordMu.Lock()
	defer d.recordMu.Unlock()

	snap := d.Snapshot()

	var index uint64
	if d.journal != nil {
		idx, err := retrier.DoWithData(d.retry, context.Background(), func(context.Context) (uint64, error) {
			return d.journal.Save(snap)
		})
		if err != nil {
			d.logger.Error("Failed to journal price snapshot", zap.Error(err))
		} else {
			index = idx
		}
	}

	if d.updates != nil {
		d.updates.Publish(events.Update{Kind: events.KindPrices, Index: index, Timestamp: snap.Timestamp})
	}
}

func (d *Dashboard) notify(msg string) {
	if d.updates != nil {
		d.updates.Publish(events.Update{Kind: events.KindNotice, Notice: msg, Timestamp: d.now()})
	}
}
