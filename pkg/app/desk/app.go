package desk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/app/core/market"
	"github.com/uhyunpark/orderdesk/pkg/util"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderNotActive = errors.New("order is not active")
	ErrUnknownList    = errors.New("unknown order list")
	ErrViewsDisabled  = errors.New("views are not started")
)

// OrderList selects which orders Orders returns.
type OrderList string

const (
	ListAll     OrderList = "all"
	ListActive  OrderList = "active"
	ListHistory OrderList = "history"
)

// SubmitRequest is an order request that may ask for its price to be derived
// from the reference price.
type SubmitRequest struct {
	core.OrderRequest
	AutoPrice bool `json:"autoPrice"`
}

// Match is an order with at least one compatible counter-order.
type Match struct {
	Order      core.Order `json:"order"`
	CounterIDs []string   `json:"counterIds"`
}

// App is the desk facade shared by the API and the background activities.
type App struct {
	store   *core.Store
	markets *market.Registry
	volume  *core.VolumeSeries
	clock   util.Clock
	log     *zap.SugaredLogger
	views   *Views
}

func NewApp(store *core.Store, markets *market.Registry, clock util.Clock, log *zap.SugaredLogger) *App {
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &App{
		store:   store,
		markets: markets,
		volume:  core.NewVolumeSeries(core.DefaultVolumeCapacity),
		clock:   clock,
		log:     log,
	}
}

func (a *App) Store() *core.Store { return a.store }

func (a *App) Markets() *market.Registry { return a.markets }

// StartViews wires the background activities into view scopes bound to ctx.
// feed may be nil when the price feed is disabled.
func (a *App) StartViews(ctx context.Context, gen *Generator, feed Activity, sampleInterval time.Duration) *Views {
	var generator Activity
	if gen != nil {
		generator = func(ctx context.Context) { RunGenerator(ctx, a.store, gen, a.log) }
	}
	sampler := func(ctx context.Context) { RunVolumeSampler(ctx, a.store, a.volume, sampleInterval, a.clock) }
	a.views = NewViews(ctx, a.log, generator, feed, sampler)
	return a.views
}

// Mount mounts view; see Views.Mount.
func (a *App) Mount(view View) (func(), error) {
	if a.views == nil {
		return nil, ErrViewsDisabled
	}
	return a.views.Mount(view)
}

// SubmitOrder validates req and adds the resulting order. With AutoPrice the
// price is quantity times the reference price, and ErrReferencePriceUnavailable
// is returned until a tick has arrived.
func (a *App) SubmitOrder(req SubmitRequest) (core.Order, error) {
	if req.AutoPrice {
		ref, ok := a.store.ReferencePrice()
		if !ok {
			return core.Order{}, core.ErrReferencePriceUnavailable
		}
		price, err := core.QuotePrice(req.Quantity, ref, ok)
		if err != nil {
			return core.Order{}, err
		}
		req.Price = price
	}

	o, err := core.NewOrder(req.OrderRequest, a.markets, a.clock.Now())
	if err != nil {
		return core.Order{}, err
	}
	if !a.store.AddOrder(o) {
		return core.Order{}, fmt.Errorf("duplicate order id %s", o.ID)
	}
	a.log.Infow("order_submitted", "id", o.ID, "side", o.Type, "qty", o.Quantity, "price", o.Price, "expiration", o.Expiration)
	return o, nil
}

// Accept marks an active order filled.
func (a *App) Accept(id string) (core.Order, error) {
	return a.transition(id, core.StatusFilled)
}

// Cancel marks an active order cancelled.
func (a *App) Cancel(id string) (core.Order, error) {
	return a.transition(id, core.StatusCancelled)
}

func (a *App) transition(id string, status core.Status) (core.Order, error) {
	var (
		out core.Order
		err error
	)
	a.store.Update(func(tx *core.Tx) {
		o, ok := tx.Get(id)
		switch {
		case !ok:
			err = ErrOrderNotFound
		case !o.Active():
			out, err = o, fmt.Errorf("%w: %s is %s", ErrOrderNotActive, id, o.Status)
		default:
			tx.Transition(id, status)
			out, _ = tx.Get(id)
		}
	})
	if err == nil {
		a.log.Infow("order_transitioned", "id", id, "status", status)
	}
	return out, err
}

// Remove deletes an order regardless of status and returns it.
func (a *App) Remove(id string) (core.Order, error) {
	var (
		removed core.Order
		ok      bool
	)
	a.store.Update(func(tx *core.Tx) {
		if removed, ok = tx.Get(id); ok {
			tx.RemoveOrder(id)
		}
	})
	if !ok {
		return core.Order{}, ErrOrderNotFound
	}
	a.log.Infow("order_removed", "id", id, "status", removed.Status)
	return removed, nil
}

// Orders lists orders in insertion order.
func (a *App) Orders(list OrderList) ([]core.Order, error) {
	switch list {
	case ListAll, "":
		return a.store.Orders(), nil
	case ListActive:
		return a.store.ActiveOrders(), nil
	case ListHistory:
		return a.store.History(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
}

func (a *App) Order(id string) (core.Order, error) {
	o, ok := a.store.Get(id)
	if !ok {
		return core.Order{}, ErrOrderNotFound
	}
	return o, nil
}

// Matches returns the current match candidates with their counter-order ids.
func (a *App) Matches() []Match {
	orders := a.store.Orders()
	candidates := core.MatchCandidates(orders)
	out := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		counters := core.CounterOrders(orders, c)
		ids := make([]string, len(counters))
		for i, o := range counters {
			ids[i] = o.ID
		}
		out = append(out, Match{Order: c, CounterIDs: ids})
	}
	return out
}

// Quote prices quantity at the reference price.
func (a *App) Quote(quantity float64) (float64, error) {
	ref, ok := a.store.ReferencePrice()
	return core.QuotePrice(quantity, ref, ok)
}

func (a *App) ReferencePrice() (float64, bool) { return a.store.ReferencePrice() }

func (a *App) Depth() []core.DepthPoint { return core.Depth(a.store.Orders()) }

func (a *App) Volume() []core.VolumePoint { return a.volume.Points() }
