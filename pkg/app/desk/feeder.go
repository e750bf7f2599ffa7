package desk

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/util"
)

// RunGenerator ticks gen against store every cfg.Interval until ctx is done.
func RunGenerator(ctx context.Context, store *core.Store, gen *Generator, log *zap.SugaredLogger) {
	ticker := time.NewTicker(gen.cfg.Interval)
	defer ticker.Stop()

	startTime := time.Now()
	ticks := 0
	log.Infow("generator_started", "interval", gen.cfg.Interval, "asset", gen.cfg.Asset)

	for {
		select {
		case <-ctx.Done():
			log.Infow("generator_stopped", "ticks", ticks, "uptime", time.Since(startTime).Round(time.Second))
			return

		case <-ticker.C:
			stats := gen.Tick(store)
			ticks++
			log.Debugw("generator_tick",
				"created", stats.Created.ID,
				"side", stats.Created.Type,
				"price", stats.Created.Price,
				"filled", stats.Filled,
				"cancelled", stats.Cancelled,
				"expired", stats.Expired)
		}
	}
}

// RunVolumeSampler records the total order quantity every interval until ctx is done.
func RunVolumeSampler(ctx context.Context, store *core.Store, series *core.VolumeSeries, interval time.Duration, clock util.Clock) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			series.Record(clock.Now(), store.Orders())
		}
	}
}
