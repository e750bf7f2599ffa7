package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderdesk/pkg/util"
)

const (
	DefaultURL            = "wss://stream.binance.com:9443/ws/btcusdt@trade"
	DefaultReconnectDelay = 3 * time.Second

	handshakeTimeout = 10 * time.Second
)

var (
	ErrMalformed     = errors.New("malformed message")
	ErrMissingPrice  = errors.New("message has no price")
	ErrNonPositive   = errors.New("price is not positive")
	ErrOutOfRange    = errors.New("price is out of float64 range")
	errStreamStopped = errors.New("stream closed")
)

// Sink receives accepted prices. *core.Store implements it.
type Sink interface {
	SetReferencePrice(p float64)
}

// Observer is told about connection changes and dropped messages.
type Observer interface {
	Connected()
	Disconnected(err error)
	Dropped(reason string)
}

type nopObserver struct{}

func (nopObserver) Connected()         {}
func (nopObserver) Disconnected(error) {}
func (nopObserver) Dropped(string)     {}

type Config struct {
	URL            string
	ReconnectDelay time.Duration
}

// PriceFeed streams trade prices into a Sink, reconnecting after a fixed
// delay for as long as its context lives.
type PriceFeed struct {
	cfg    Config
	sink   Sink
	clock  util.Clock
	log    *zap.SugaredLogger
	obs    Observer
	dialer *websocket.Dialer
}

func New(cfg Config, sink Sink, clock util.Clock, log *zap.SugaredLogger, obs Observer) *PriceFeed {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &PriceFeed{
		cfg:    cfg,
		sink:   sink,
		clock:  clock,
		log:    log,
		obs:    obs,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Run connects and consumes the stream until ctx is cancelled, which is the
// only way it returns.
func (f *PriceFeed) Run(ctx context.Context) error {
	f.log.Infow("feed_started", "url", f.cfg.URL)
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			f.log.Infow("feed_stopped")
			return ctx.Err()
		}
		f.obs.Disconnected(err)
		f.log.Warnw("feed_disconnected", "err", err, "retry_in", f.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			f.log.Infow("feed_stopped")
			return ctx.Err()
		case <-f.clock.After(f.cfg.ReconnectDelay):
		}
	}
}

// Activity adapts Run to a background activity.
func (f *PriceFeed) Activity() func(ctx context.Context) {
	return func(ctx context.Context) { _ = f.Run(ctx) }
}

func (f *PriceFeed) session(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	f.obs.Connected()
	f.log.Infow("feed_connected", "url", f.cfg.URL)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errStreamStopped
			}
			return fmt.Errorf("read: %w", err)
		}
		f.HandleMessage(msg)
	}
}

// HandleMessage applies one stream message. Messages without a usable price
// are dropped and the previous price stays in place.
func (f *PriceFeed) HandleMessage(msg []byte) bool {
	p, err := ParsePrice(msg)
	if err != nil {
		reason := dropReason(err)
		f.obs.Dropped(reason)
		f.log.Debugw("feed_message_dropped", "reason", reason, "err", err)
		return false
	}
	f.sink.SetReferencePrice(p)
	return true
}

type tradeMessage struct {
	P *decimal.Decimal `json:"p"`
}

// ParsePrice extracts the trade price from a stream message. The price may be
// a numeric string or a JSON number.
func ParsePrice(msg []byte) (float64, error) {
	var m tradeMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.P == nil {
		return 0, ErrMissingPrice
	}
	if !m.P.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrNonPositive, m.P.String())
	}
	// exponents beyond float64 overflow to +Inf or underflow to 0
	f := m.P.InexactFloat64()
	if f <= 0 || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, m.P.String())
	}
	return f, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingPrice):
		return "missing_price"
	case errors.Is(err, ErrNonPositive):
		return "non_positive"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	default:
		return "malformed"
	}
}
