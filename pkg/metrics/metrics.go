package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
)

const (
	SubsystemOrders = "orders"
	SubsystemFeed   = "feed"
	SubsystemAPI    = "api"
)

// Metrics contains the desk metrics.
type Metrics struct {
	// Orders added to the store, by side.
	OrdersAdded *prometheus.CounterVec
	// Transitions into a terminal status, by status.
	OrderTransitions *prometheus.CounterVec
	OrdersRemoved    prometheus.Counter
	// Orders currently active.
	ActiveOrders   prometheus.Gauge
	ReferencePrice prometheus.Gauge

	// 1 while the price stream is connected.
	FeedConnected  prometheus.Gauge
	FeedReconnects prometheus.Counter
	// Feed messages dropped, by reason.
	FeedDropped *prometheus.CounterVec

	WSClients    prometheus.Gauge
	HTTPRequests *prometheus.CounterVec
}

// PrometheusMetrics builds Metrics and registers them with reg when reg is not nil.
func PrometheusMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: SubsystemOrders,
			Name:      "added_total",
			Help:      "Orders added to the store.",
		}, []string{"side"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: SubsystemOrders,
			Name:      "transitions_total",
			Help:      "Orders moved to a terminal status.",
		}, []string{"status"}),
		OrdersRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: SubsystemOrders,
			Name:      "removed_total",
			Help:      "Orders removed from the store.",
		}),
		ActiveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: SubsystemOrders,
			Name:      "active",
			Help:      "Orders currently in the active status.",
		}),
		ReferencePrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: SubsystemFeed,
			Name:      "reference_price",
			Help:      "Latest accepted reference price.",
		}),
		FeedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: SubsystemFeed,
			Name:      "connected",
			Help:      "Whether the price stream is connected.",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: SubsystemFeed,
			Name:      "disconnects_total",
			Help:      "Price stream disconnects and failed dials.",
		}),
		FeedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: SubsystemFeed,
			Name:      "dropped_messages_total",
			Help:      "Price stream messages dropped without updating the price.",
		}, []string{"reason"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: SubsystemAPI,
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: SubsystemAPI,
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.OrdersAdded, m.OrderTransitions, m.OrdersRemoved, m.ActiveOrders, m.ReferencePrice,
			m.FeedConnected, m.FeedReconnects, m.FeedDropped,
			m.WSClients, m.HTTPRequests,
		)
	}
	return m
}

// NopMetrics returns unregistered metrics.
func NopMetrics() *Metrics {
	return PrometheusMetrics("", nil)
}

// ObserveEvent updates the order metrics from a store event. Register it with
// core.Store.Subscribe.
func (m *Metrics) ObserveEvent(ev core.Event) {
	if m == nil {
		return
	}
	switch ev.Type {
	case core.EventOrderAdded:
		m.OrdersAdded.WithLabelValues(string(ev.Order.Type)).Inc()
		if ev.Order.Active() {
			m.ActiveOrders.Inc()
		}
	case core.EventOrderUpdated:
		// only active orders can be updated, so a terminal status here is a transition
		if ev.Order.Status.Terminal() {
			m.OrderTransitions.WithLabelValues(string(ev.Order.Status)).Inc()
			m.ActiveOrders.Dec()
		}
	case core.EventOrderRemoved:
		m.OrdersRemoved.Inc()
		if ev.Order.Active() {
			m.ActiveOrders.Dec()
		}
	case core.EventPriceUpdated:
		m.ReferencePrice.Set(ev.Price)
	}
}

// Connected, Disconnected and Dropped make Metrics a feed observer.

func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.FeedConnected.Set(1)
}

func (m *Metrics) Disconnected(error) {
	if m == nil {
		return
	}
	m.FeedConnected.Set(0)
	m.FeedReconnects.Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.FeedDropped.WithLabelValues(reason).Inc()
}
