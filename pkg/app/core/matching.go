package core

import "sort"

// Crosses reports whether b is a compatible counter-order for a: same asset,
// opposite side, and a price on the right side of a's limit.
func Crosses(a, b Order) bool {
	if a.Asset != b.Asset || a.Type == b.Type {
		return false
	}
	if a.Type == Buy {
		return b.Price <= a.Price
	}
	return b.Price >= a.Price
}

// bounds holds the best active prices per asset: the highest bid and the
// lowest ask. A buy has a counter-order iff minAsk <= its price, a sell iff
// maxBid >= its price, so one pass replaces the pairwise scan.
type bounds struct {
	maxBid, minAsk float64
	hasBid, hasAsk bool
}

func indexBounds(orders []Order) map[string]*bounds {
	idx := make(map[string]*bounds)
	for _, o := range orders {
		if !o.Active() {
			continue
		}
		b := idx[o.Asset]
		if b == nil {
			b = &bounds{}
			idx[o.Asset] = b
		}
		switch o.Type {
		case Buy:
			if !b.hasBid || o.Price > b.maxBid {
				b.maxBid, b.hasBid = o.Price, true
			}
		case Sell:
			if !b.hasAsk || o.Price < b.minAsk {
				b.minAsk, b.hasAsk = o.Price, true
			}
		}
	}
	return idx
}

// MatchCandidates returns, in input order, the active orders that have at
// least one active crossing counter-order. Both sides of a crossing pair are
// reported. Order statuses are not touched.
func MatchCandidates(orders []Order) []Order {
	idx := indexBounds(orders)
	out := make([]Order, 0)
	for _, o := range orders {
		if !o.Active() {
			continue
		}
		b := idx[o.Asset]
		switch o.Type {
		case Buy:
			if b.hasAsk && b.minAsk <= o.Price {
				out = append(out, o)
			}
		case Sell:
			if b.hasBid && b.maxBid >= o.Price {
				out = append(out, o)
			}
		}
	}
	return out
}

// CounterOrders returns the active orders that cross target, best price first
// (lowest ask for a buy, highest bid for a sell), ties in input order.
func CounterOrders(orders []Order, target Order) []Order {
	out := make([]Order, 0)
	for _, o := range orders {
		if o.ID == target.ID || !o.Active() {
			continue
		}
		if Crosses(target, o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if target.Type == Buy {
			return out[i].Price < out[j].Price
		}
		return out[i].Price > out[j].Price
	})
	return out
}
