package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uhyunpark/orderdesk/params"
	"github.com/uhyunpark/orderdesk/pkg/api"
	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/app/core/market"
	"github.com/uhyunpark/orderdesk/pkg/app/desk"
	"github.com/uhyunpark/orderdesk/pkg/feed"
	"github.com/uhyunpark/orderdesk/pkg/metrics"
	"github.com/uhyunpark/orderdesk/pkg/util"
)

const progressInterval = 30 * time.Second

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup logging (console, plus a file when LOG_FILE is set)
	var logger *zap.Logger
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	} else {
		logger, err = util.NewLogger(cfg.Log.Level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "level", cfg.Log.Level, "log_file", cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Fatalw("desk_failed", "err", err)
	}
	sugar.Info("desk_stopped")
}

func run(ctx context.Context, cfg params.Config, sugar *zap.SugaredLogger) error {
	clock := util.RealClock{}

	// ---- State ----
	store := core.NewStore()
	markets := market.NewDefaultRegistry() // BTC-USDT only
	m := metrics.PrometheusMetrics("orderdesk", prometheus.DefaultRegisterer)
	store.Subscribe(m.ObserveEvent)

	app := desk.NewApp(store, markets, clock, sugar.Named("desk"))

	// ---- Background activities ----
	genCfg := desk.DefaultGeneratorConfig()
	genCfg.Interval = cfg.Generator.Interval
	gen := desk.NewGenerator(genCfg, desk.NewSeededRand(cfg.Generator.Seed), clock)

	var feedActivity desk.Activity
	if cfg.Feed.Enabled {
		pf := feed.New(feed.Config{URL: cfg.Feed.URL, ReconnectDelay: cfg.Feed.ReconnectDelay},
			store, clock, sugar.Named("feed"), m)
		feedActivity = pf.Activity()
	} else {
		sugar.Info("feed_disabled")
	}

	views := app.StartViews(ctx, gen, feedActivity, cfg.Sim.VolumeSampleInterval)
	if cfg.Sim.Mode == params.SimAlways {
		unmount := views.MountAll()
		defer unmount()
	}

	sugar.Infow("desk_starting",
		"api_addr", cfg.API.Addr,
		"sim_mode", cfg.Sim.Mode,
		"generator_interval", cfg.Generator.Interval,
		"feed_enabled", cfg.Feed.Enabled)

	// ---- API Server ----
	apiServer := api.NewServer(app, api.Config{AllowedOrigins: cfg.API.AllowedOrigins}, sugar.Named("api"), m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := apiServer.Run(gctx, cfg.API.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reportProgress(gctx, app, sugar)
		return nil
	})
	return g.Wait()
}

// reportProgress logs a summary of the desk every progressInterval.
func reportProgress(ctx context.Context, app *desk.App, sugar *zap.SugaredLogger) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ref, ok := app.ReferencePrice()
			active, _ := app.Orders(desk.ListActive)
			sugar.Infow("desk_progress",
				"orders", app.Store().Len(),
				"active", len(active),
				"matches", len(app.Matches()),
				"reference_price", ref,
				"has_price", ok)
		}
	}
}
