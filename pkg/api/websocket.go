package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderdesk/pkg/app/desk"
	"github.com/uhyunpark/orderdesk/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

// Mounter mounts a view for the lifetime of a subscription.
type Mounter interface {
	Mount(view desk.View) (unmount func(), err error)
}

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe access
	mu sync.RWMutex

	views   Mounter
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewHub creates a new WebSocket hub
func NewHub(views Mounter, log *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		views:      views,
		log:        log,
		metrics:    m,
	}
}

// Run starts the hub's main loop. When ctx is done every client is
// disconnected and Run returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.WSClients.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClients.Set(float64(n))
			h.log.Infow("ws_client_connected", "client", client.id, "remote", client.conn.RemoteAddr().String(), "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClients.Set(float64(n))
			h.log.Infow("ws_client_disconnected", "client", client.id, "total", n)
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToChannel sends a message to all clients subscribed to a channel.
// Clients whose buffer is full miss the message.
func (h *Hub) BroadcastToChannel(channel string, data interface{}) {
	message, err := json.Marshal(data)
	if err != nil {
		h.log.Errorw("ws_marshal_failed", "channel", channel, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.IsSubscribed(channel) {
			select {
			case client.send <- message:
			default:
				h.log.Debugw("ws_message_skipped", "client", client.id, "channel", channel)
			}
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Client represents a WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// Subscribed channels
	subscriptions map[string]bool
	mounts        map[desk.View]func() // Unmount funcs for view subscriptions
	subsMu        sync.RWMutex
}

// IsSubscribed checks if client is subscribed to a channel
func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

// Subscribe adds a channel subscription. view:* channels mount the view.
// Only the read pump calls Subscribe, Unsubscribe and releaseAll.
func (c *Client) Subscribe(channel string) error {
	if c.IsSubscribed(channel) {
		return nil
	}

	// mount outside subsMu: broadcasts from running activities need it
	var (
		view    desk.View
		unmount func()
	)
	if name, ok := strings.CutPrefix(channel, viewChannelPrefix); ok {
		var err error
		if view, err = desk.ParseView(name); err != nil {
			return err
		}
		if unmount, err = c.hub.views.Mount(view); err != nil {
			return err
		}
	} else if channel != ChannelOrders && channel != ChannelPrice {
		return errUnknownChannel
	}

	c.subsMu.Lock()
	c.subscriptions[channel] = true
	if unmount != nil {
		c.mounts[view] = unmount
	}
	c.subsMu.Unlock()

	c.hub.log.Debugw("ws_subscribed", "client", c.id, "channel", channel)
	return nil
}

// Unsubscribe removes a channel subscription
func (c *Client) Unsubscribe(channel string) {
	c.subsMu.Lock()
	unmount := c.unsubscribeLocked(channel)
	c.subsMu.Unlock()

	if unmount != nil {
		unmount()
	}
}

func (c *Client) unsubscribeLocked(channel string) (unmount func()) {
	if !c.subscriptions[channel] {
		return nil
	}
	delete(c.subscriptions, channel)
	if name, ok := strings.CutPrefix(channel, viewChannelPrefix); ok {
		view := desk.View(name)
		unmount = c.mounts[view]
		delete(c.mounts, view)
	}
	c.hub.log.Debugw("ws_unsubscribed", "client", c.id, "channel", channel)
	return unmount
}

// releaseAll drops every subscription, unmounting views.
func (c *Client) releaseAll() {
	var unmounts []func()
	c.subsMu.Lock()
	for channel := range c.subscriptions {
		if u := c.unsubscribeLocked(channel); u != nil {
			unmounts = append(unmounts, u)
		}
	}
	c.subsMu.Unlock()

	for _, u := range unmounts {
		u()
	}
}

// reply queues a message for this client only
func (c *Client) reply(v interface{}) {
	message, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.releaseAll()
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("ws_read_failed", "client", c.id, "err", err)
			}
			break
		}

		// Handle subscription requests
		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(WSAck{Type: "error", Error: "invalid message"})
			continue
		}

		switch req.Op {
		case "subscribe":
			for _, channel := range req.Channels {
				if err := c.Subscribe(channel); err != nil {
					c.reply(WSAck{Type: "error", Channel: channel, Error: err.Error()})
					continue
				}
				c.reply(WSAck{Type: "subscribed", Channel: channel})
			}
		case "unsubscribe":
			for _, channel := range req.Channels {
				c.Unsubscribe(channel)
				c.reply(WSAck{Type: "unsubscribed", Channel: channel})
			}
		default:
			c.reply(WSAck{Type: "error", Error: "unknown op " + req.Op})
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket handles WebSocket upgrade and client lifecycle
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_failed", "err", err)
		return
	}

	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		id:            uuid.NewString(),
		subscriptions: make(map[string]bool),
		mounts:        make(map[desk.View]func()),
	}

	if !s.hub.add(client) {
		conn.Close()
		return
	}

	// Start read and write pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}
