package market

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultSymbol is the only instrument the desk trades out of the box.
const DefaultSymbol = "BTC-USDT"

// Status defines the trading status of a market
type Status int8

const (
	Active Status = iota // Trading enabled
	Paused               // Orders rejected
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Market identifies a tradable instrument (e.g., BTC-USDT)
type Market struct {
	Symbol     string // "BTC-USDT"
	BaseAsset  string // "BTC"
	QuoteAsset string // "USDT"
	Status     Status
}

// Registry manages the set of tradable markets in a thread-safe manner
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // symbol -> market
}

// NewRegistry creates an empty market registry
func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]*Market),
	}
}

// NewDefaultRegistry returns a registry holding BTC-USDT only.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(&Market{Symbol: DefaultSymbol, BaseAsset: "BTC", QuoteAsset: "USDT", Status: Active})
	return r
}

// Register adds a new market to the registry
// Returns error if market with same symbol already exists
func (r *Registry) Register(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	if m.Symbol == "" {
		return fmt.Errorf("market symbol is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[m.Symbol]; exists {
		return fmt.Errorf("market %s already registered", m.Symbol)
	}

	r.markets[m.Symbol] = m
	return nil
}

// Get retrieves a market by symbol
func (r *Registry) Get(symbol string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[symbol]
	if !exists {
		return nil, fmt.Errorf("market %s not found", symbol)
	}

	return m, nil
}

// List returns all registered markets sorted by symbol
func (r *Registry) List() []Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	markets := make([]Market, 0, len(r.markets))
	for _, m := range r.markets {
		markets = append(markets, *m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })

	return markets
}

// SetStatus pauses or resumes a market
func (r *Registry) SetStatus(symbol string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[symbol]
	if !exists {
		return fmt.Errorf("market %s not found", symbol)
	}
	m.Status = status
	return nil
}

// Tradable reports whether orders for symbol can be accepted.
func (r *Registry) Tradable(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, exists := r.markets[symbol]
	return exists && m.Status == Active
}

// Count returns the total number of registered markets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}
