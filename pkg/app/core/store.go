package core

import (
	"sync"
)

type EventType string

const (
	EventOrderAdded   EventType = "order_added"
	EventOrderUpdated EventType = "order_updated"
	EventOrderRemoved EventType = "order_removed"
	EventPriceUpdated EventType = "price_updated"
)

// Event describes one applied store mutation. Order is the order after the
// mutation (before it, for removals); Price is set for price updates.
type Event struct {
	Type  EventType `json:"type"`
	Order Order     `json:"order"`
	Price float64   `json:"price,omitempty"`
}

// OrderUpdate is a partial order update. Nil fields are left unchanged.
// ID, type, asset and expiration are immutable and cannot be updated.
type OrderUpdate struct {
	Quantity *float64
	Price    *float64
	Status   *Status
}

// StatusUpdate builds an OrderUpdate that only changes the status.
func StatusUpdate(s Status) OrderUpdate { return OrderUpdate{Status: &s} }

// Store is the single source of truth for orders and the reference price.
// Every operation is atomic; listeners run after the state lock is released,
// in mutation order, and must not mutate the store themselves.
type Store struct {
	mu        sync.RWMutex
	orders    []Order
	index     map[string]int // id -> position in orders
	refPrice  float64
	hasRef    bool
	emitMu    sync.Mutex
	listeners []func(Event)
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Subscribe registers a listener for every applied mutation.
func (s *Store) Subscribe(fn func(Event)) {
	s.emitMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.emitMu.Unlock()
}

// Update runs fn with exclusive access to the store. All mutations made
// through tx become visible to readers at once.
func (s *Store) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	tx := &Tx{s: s}
	fn(tx)
	events := tx.events
	tx.s = nil

	// take emitMu before releasing mu so batches are delivered in commit order
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	for _, ev := range events {
		for _, l := range s.listeners {
			l(ev)
		}
	}
}

// AddOrder appends order. Fields are not re-validated; an order whose id is
// already stored is ignored and false is returned.
func (s *Store) AddOrder(o Order) (added bool) {
	s.Update(func(tx *Tx) { added = tx.AddOrder(o) })
	return added
}

// UpdateOrder applies a partial update to the active order with the given id.
// It is a no-op for unknown ids and for orders in a terminal status.
func (s *Store) UpdateOrder(id string, u OrderUpdate) (applied bool) {
	s.Update(func(tx *Tx) { applied = tx.UpdateOrder(id, u) })
	return applied
}

// Transition moves an active order to status. See UpdateOrder.
func (s *Store) Transition(id string, status Status) bool {
	return s.UpdateOrder(id, StatusUpdate(status))
}

// RemoveOrder deletes the order with the given id, if present.
func (s *Store) RemoveOrder(id string) (removed bool) {
	s.Update(func(tx *Tx) { removed = tx.RemoveOrder(id) })
	return removed
}

// SetReferencePrice replaces the reference price unconditionally.
func (s *Store) SetReferencePrice(p float64) {
	s.Update(func(tx *Tx) { tx.SetReferencePrice(p) })
}

// ReferencePrice returns the latest reference price and whether one exists.
func (s *Store) ReferencePrice() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refPrice, s.hasRef
}

// Orders returns a copy of all orders in insertion order.
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Order(nil), s.orders...)
}

func (s *Store) Get(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Order{}, false
	}
	return s.orders[i], true
}

// ActiveOrders returns the orders still eligible to match or expire.
func (s *Store) ActiveOrders() []Order {
	return Filter(s.Orders(), Order.Active)
}

// History returns the orders in a terminal status.
func (s *Store) History() []Order {
	return Filter(s.Orders(), func(o Order) bool { return !o.Active() })
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Filter returns the orders for which keep is true, preserving order.
func Filter(orders []Order, keep func(Order) bool) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Tx gives mutating access to the store inside Store.Update. It must not be
// retained after the callback returns.
type Tx struct {
	s      *Store
	events []Event
}

// Orders returns a copy of the orders as currently staged.
func (tx *Tx) Orders() []Order {
	return append([]Order(nil), tx.s.orders...)
}

func (tx *Tx) Get(id string) (Order, bool) {
	i, ok := tx.s.index[id]
	if !ok {
		return Order{}, false
	}
	return tx.s.orders[i], true
}

func (tx *Tx) AddOrder(o Order) bool {
	s := tx.s
	if _, dup := s.index[o.ID]; dup {
		return false
	}
	s.index[o.ID] = len(s.orders)
	s.orders = append(s.orders, o)
	tx.events = append(tx.events, Event{Type: EventOrderAdded, Order: o})
	return true
}

func (tx *Tx) UpdateOrder(id string, u OrderUpdate) bool {
	s := tx.s
	i, ok := s.index[id]
	if !ok {
		return false
	}
	o := s.orders[i]
	if !o.Active() {
		return false
	}

	next := o
	if u.Quantity != nil {
		next.Quantity = *u.Quantity
	}
	if u.Price != nil {
		next.Price = *u.Price
	}
	if u.Status != nil && u.Status.Valid() {
		next.Status = *u.Status
	}
	if next == o {
		return false
	}

	s.orders[i] = next
	tx.events = append(tx.events, Event{Type: EventOrderUpdated, Order: next})
	return true
}

func (tx *Tx) Transition(id string, status Status) bool {
	return tx.UpdateOrder(id, StatusUpdate(status))
}

func (tx *Tx) RemoveOrder(id string) bool {
	s := tx.s
	i, ok := s.index[id]
	if !ok {
		return false
	}
	removed := s.orders[i]
	s.orders = append(s.orders[:i], s.orders[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.orders); j++ {
		s.index[s.orders[j].ID] = j
	}
	tx.events = append(tx.events, Event{Type: EventOrderRemoved, Order: removed})
	return true
}

func (tx *Tx) SetReferencePrice(p float64) {
	tx.s.refPrice = p
	tx.s.hasRef = true
	tx.events = append(tx.events, Event{Type: EventPriceUpdated, Price: p})
}
