package api

import (
	"github.com/uhyunpark/orderdesk/pkg/app/core"
)

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// AssetInfo describes a tradable asset
type AssetInfo struct {
	Symbol     string `json:"symbol"`     // e.g., "BTC-USDT"
	BaseAsset  string `json:"baseAsset"`  // e.g., "BTC"
	QuoteAsset string `json:"quoteAsset"` // e.g., "USDT"
	Status     string `json:"status"`     // "Active", "Paused"
}

// PriceInfo is the current reference price
type PriceInfo struct {
	Price     float64 `json:"price,omitempty"`
	Available bool    `json:"available"`
}

// QuoteInfo is the total price of a quantity at the reference price
type QuoteInfo struct {
	Quantity       float64 `json:"quantity"`
	ReferencePrice float64 `json:"referencePrice"`
	Price          float64 `json:"price"`
}

// ==============================
// WebSocket Message Types
// ==============================

// Channels a WebSocket client can subscribe to
const (
	ChannelOrders = "orders"
	ChannelPrice  = "price"

	// view:client and view:manager mount a view for as long as the
	// subscription lasts
	viewChannelPrefix = "view:"
)

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orders", "price", "view:client"]
}

// WSAck answers a subscribe or unsubscribe request, once per channel
type WSAck struct {
	Type    string `json:"type"` // "subscribed", "unsubscribed", "error"
	Channel string `json:"channel"`
	Error   string `json:"error,omitempty"`
}

// OrderEvent is broadcast on the orders channel for every store mutation
type OrderEvent struct {
	Type      core.EventType `json:"type"` // "order_added", "order_updated", "order_removed"
	Order     core.Order     `json:"order"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
}

// PriceUpdate is broadcast on the price channel for every accepted tick
type PriceUpdate struct {
	Type      core.EventType `json:"type"` // "price_updated"
	Price     float64        `json:"price"`
	Timestamp int64          `json:"timestamp"`
}

// ==============================
// Errors
// ==============================

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  []core.FieldError `json:"fields,omitempty"` // Per-field validation failures
}
