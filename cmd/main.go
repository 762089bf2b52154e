// Command materialwatch runs the simulated material price dashboard.
// Prices tick in the background; the dashboard is served over HTTP and SSE
// and, optionally, drawn in the terminal.
//
// Usage:
//
//	materialwatch --config config.yaml
//	materialwatch --tick 1s --addr :8000 --console
//	materialwatch setup (interactive wizard, then start)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/materialwatch/config"
	"github.com/vadiminshakov/materialwatch/internal"
	"github.com/vadiminshakov/materialwatch/internal/events"
	"github.com/vadiminshakov/materialwatch/internal/render"
	"github.com/vadiminshakov/materialwatch/internal/setup"
	"github.com/vadiminshakov/materialwatch/internal/storage/pricesnapshots"
	"github.com/vadiminshakov/materialwatch/internal/web"
)

const updatesBuffer = 64

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "setup" {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		args = append([]string{"--config", path}, args[1:]...)
	}

	conf, err := config.Parse(args)
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(conf.Console, os.Stderr)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, logger); err != nil {
		logger.Fatal("dashboard stopped", zap.Error(err))
	}
}

// newLogger returns the production logger, or in console mode one that only
// reports errors to errOut so the terminal stays with the dashboard.
func newLogger(console bool, errOut zapcore.WriteSyncer) *zap.Logger {
	if !console {
		logger, err := zap.NewProduction()
		if err == nil {
			return logger
		}
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(errOut), zapcore.ErrorLevel)
	return zap.New(core)
}

func run(ctx context.Context, conf config.Config, logger *zap.Logger) error {
	journal, err := pricesnapshots.NewWALStore(conf.JournalDir)
	if err != nil {
		return errors.Wrap(err, "failed to open price journal")
	}
	defer journal.Close()

	updates := events.NewBroadcaster(updatesBuffer)

	dashboard, err := internal.NewDashboard(conf, logger.Named("dashboard"), journal, updates)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dashboard.Run(ctx)
	})

	if conf.WebAddr != "" {
		server := web.NewServer(conf.WebAddr, dashboard, journal, updates, logger.Named("web"))
		g.Go(func() error {
			if len(conf.TLSDomains) > 0 {
				return server.StartWithAutoTLS(ctx, conf.TLSDomains, conf.CertCacheDir)
			}
			return server.Start(ctx)
		})
	}

	if conf.Console {
		console := render.NewConsole(dashboard, updates, os.Stdout, logger.Named("console"))
		g.Go(func() error {
			return console.Run(ctx)
		})
	}

	logger.Info("started",
		zap.String("session", dashboard.Session()),
		zap.String("web_addr", conf.WebAddr),
		zap.Bool("console", conf.Console))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
