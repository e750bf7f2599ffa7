package desk

import (
	"math/rand"
	"time"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/app/core/market"
	"github.com/uhyunpark/orderdesk/pkg/util"
)

// Rand is the random source the generator draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// GeneratorConfig shapes the synthetic order flow.
type GeneratorConfig struct {
	Interval       time.Duration // How often a tick runs
	Asset          string
	MinPrice       float64 // Inclusive lower bound of generated prices
	MaxPrice       float64 // Inclusive upper bound of generated prices
	MaxQuantity    float64 // Quantities are drawn from (0, MaxQuantity]
	MaxLifetime    time.Duration
	TransitionProb float64 // Chance per order per tick of a random fill/cancel
	FillProb       float64 // Chance a random transition is a fill rather than a cancel
}

// DefaultGeneratorConfig mimics BTC-USDT activity around $30k, one order every 5s.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Interval:       5 * time.Second,
		Asset:          market.DefaultSymbol,
		MinPrice:       29000,
		MaxPrice:       31000,
		MaxQuantity:    2,
		MaxLifetime:    24 * time.Hour,
		TransitionProb: 0.2,
		FillProb:       0.5,
	}
}

const (
	quantityPlaces = 8
	pricePlaces    = 2
)

// Generator synthesises orders and drives random lifecycle transitions.
type Generator struct {
	cfg   GeneratorConfig
	rng   Rand
	clock util.Clock
	newID func() string
}

// NewGenerator builds a generator. A nil rng is replaced by a time-seeded source,
// a nil clock by the real clock.
func NewGenerator(cfg GeneratorConfig, rng Rand, clock util.Clock) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Generator{cfg: cfg, rng: rng, clock: clock, newID: core.NewOrderID}
}

// NewSeededRand returns a deterministic source for seed, or a time-seeded one for 0.
func NewSeededRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// NewOrder creates a random active order relative to now.
func (g *Generator) NewOrder(now time.Time) core.Order {
	side := core.Sell
	if g.rng.Float64() < 0.5 {
		side = core.Buy
	}

	// 1-u lies in (0, 1], so quantities never start at zero
	qty := core.Round((1-g.rng.Float64())*g.cfg.MaxQuantity, quantityPlaces)
	if qty <= 0 {
		qty = 1e-8
	}
	price := core.Round(g.cfg.MinPrice+g.rng.Float64()*(g.cfg.MaxPrice-g.cfg.MinPrice), pricePlaces)
	lifetime := time.Duration(g.rng.Float64() * float64(g.cfg.MaxLifetime))

	return core.Order{
		ID:         g.newID(),
		Type:       side,
		Asset:      g.cfg.Asset,
		Quantity:   qty,
		Price:      price,
		Expiration: now.Add(lifetime),
		Status:     core.StatusActive,
	}
}

// TickStats summarises what one tick did.
type TickStats struct {
	Created   core.Order
	Filled    int
	Cancelled int
	Expired   int
}

// Tick runs one generator step against store as a single atomic batch:
// synthesise one order, randomly fill or cancel known orders, expire orders
// past their expiration. Steps two and three only look at the orders that
// existed when the tick started.
func (g *Generator) Tick(store *core.Store) TickStats {
	now := g.clock.Now()
	var stats TickStats

	store.Update(func(tx *core.Tx) {
		snapshot := tx.Orders()

		stats.Created = g.NewOrder(now)
		tx.AddOrder(stats.Created)

		for _, o := range snapshot {
			if g.rng.Float64() >= g.cfg.TransitionProb {
				continue
			}
			status := core.StatusCancelled
			if g.rng.Float64() < g.cfg.FillProb {
				status = core.StatusFilled
			}
			if tx.Transition(o.ID, status) {
				if status == core.StatusFilled {
					stats.Filled++
				} else {
					stats.Cancelled++
				}
			}
		}

		for _, o := range snapshot {
			if o.ExpiredAt(now) && tx.Transition(o.ID, core.StatusExpired) {
				stats.Expired++
			}
		}
	})

	return stats
}
