package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/app/desk"
	"github.com/uhyunpark/orderdesk/pkg/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

var errUnknownChannel = errors.New("unknown channel")

// Config holds the HTTP surface settings
type Config struct {
	AllowedOrigins []string
	// Gatherer backs /metrics; nil means the default registry
	Gatherer prometheus.Gatherer
}

// Server handles REST API and WebSocket connections
type Server struct {
	app     *desk.App
	router  *mux.Router
	hub     *Hub // WebSocket hub
	cfg     Config
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewServer creates a new API server and subscribes it to store events so
// they reach WebSocket clients
func NewServer(app *desk.App, cfg Config, log *zap.SugaredLogger, m *metrics.Metrics) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.NopMetrics()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		app:     app,
		router:  mux.NewRouter(),
		hub:     NewHub(app, log, m),
		cfg:     cfg,
		log:     log,
		metrics: m,
	}

	s.setupRoutes()
	app.Store().Subscribe(s.broadcastEvent)
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requestMiddleware)

	// Assets
	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")

	// Orders
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleRemoveOrder).Methods("DELETE")
	api.HandleFunc("/orders/{id}/accept", s.handleAcceptOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	// Manager views
	api.HandleFunc("/matches", s.handleGetMatches).Methods("GET")
	api.HandleFunc("/charts/orderbook", s.handleGetDepth).Methods("GET")
	api.HandleFunc("/charts/volume", s.handleGetVolume).Methods("GET")

	// Reference price
	api.HandleFunc("/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/quote", s.handleGetQuote).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check and metrics
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(s.router)
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub { return s.hub }

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infow("api_listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	// disconnect WebSocket clients first; Shutdown does not wait for hijacked connections
	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Infow("api_stopped")
	return nil
}

// ==============================
// Middleware
// ==============================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestMiddleware tags each request with an id, logs it and counts it per route
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.log.Debugw("api_request",
			"request_id", id,
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	markets := s.app.Markets().List()

	response := make([]AssetInfo, len(markets))
	for i, m := range markets {
		response[i] = AssetInfo{
			Symbol:     m.Symbol,
			BaseAsset:  m.BaseAsset,
			QuoteAsset: m.QuoteAsset,
			Status:     m.Status.String(),
		}
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.app.Orders(desk.OrderList(r.URL.Query().Get("view")))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid view", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.app.Order(mux.Vars(r)["id"])
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req desk.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	o, err := s.app.SubmitOrder(req)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.app.Remove(mux.Vars(r)["id"])
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.app.Accept(mux.Vars(r)["id"])
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.app.Cancel(mux.Vars(r)["id"])
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) handleGetMatches(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.app.Matches())
}

func (s *Server) handleGetDepth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.app.Depth())
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.app.Volume())
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	p, ok := s.app.ReferencePrice()
	respondJSON(w, http.StatusOK, PriceInfo{Price: p, Available: ok})
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	qty, err := strconv.ParseFloat(r.URL.Query().Get("quantity"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quantity", err.Error())
		return
	}

	price, err := s.app.Quote(qty)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	ref, _ := s.app.ReferencePrice()
	respondJSON(w, http.StatusOK, QuoteInfo{Quantity: qty, ReferencePrice: ref, Price: price})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"orders":    s.app.Store().Len(),
		"wsClients": s.hub.ClientCount(),
	})
}

// ==============================
// Broadcast
// ==============================

// broadcastEvent forwards a store event to the matching WebSocket channel
func (s *Server) broadcastEvent(ev core.Event) {
	now := time.Now().UnixMilli()
	if ev.Type == core.EventPriceUpdated {
		s.hub.BroadcastToChannel(ChannelPrice, PriceUpdate{Type: ev.Type, Price: ev.Price, Timestamp: now})
		return
	}
	s.hub.BroadcastToChannel(ChannelOrders, OrderEvent{Type: ev.Type, Order: ev.Order, Timestamp: now})
}

// ==============================
// Helper Functions
// ==============================

// respondAppError maps desk and core errors to status codes
func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	if verr, ok := core.AsValidationError(err); ok {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid order",
			Message: verr.Error(),
			Fields:  verr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, desk.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, desk.ErrOrderNotActive):
		respondError(w, http.StatusConflict, "order not active", err.Error())
	case errors.Is(err, core.ErrReferencePriceUnavailable):
		respondError(w, http.StatusServiceUnavailable, "reference price unavailable", err.Error())
	case errors.Is(err, core.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid quantity", err.Error())
	default:
		s.log.Errorw("api_internal_error", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
