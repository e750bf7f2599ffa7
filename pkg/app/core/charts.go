package core

import (
	"sync"
	"time"
)

// DepthPoint is one bar of the order-book chart.
type DepthPoint struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Type     Side    `json:"type"`
}

// Depth returns one point per order, buys first then sells.
func Depth(orders []Order) []DepthPoint {
	out := make([]DepthPoint, 0, len(orders))
	for _, side := range []Side{Buy, Sell} {
		for _, o := range orders {
			if o.Type == side {
				out = append(out, DepthPoint{Price: o.Price, Quantity: o.Quantity, Type: side})
			}
		}
	}
	return out
}

// TotalQuantity sums the quantity of all orders regardless of status.
func TotalQuantity(orders []Order) float64 {
	var sum float64
	for _, o := range orders {
		sum += o.Quantity
	}
	return sum
}

type VolumePoint struct {
	Time   time.Time `json:"time"`
	Volume float64   `json:"volume"`
}

// DefaultVolumeCapacity keeps an hour of samples at the 5s cadence.
const DefaultVolumeCapacity = 720

// VolumeSeries is a bounded, append-only series of volume samples. Once full,
// the oldest sample is dropped for each new one.
type VolumeSeries struct {
	mu     sync.Mutex
	points []VolumePoint
	max    int
}

func NewVolumeSeries(capacity int) *VolumeSeries {
	if capacity <= 0 {
		capacity = DefaultVolumeCapacity
	}
	return &VolumeSeries{max: capacity}
}

// Record appends the total quantity of orders at t.
func (v *VolumeSeries) Record(t time.Time, orders []Order) VolumePoint {
	p := VolumePoint{Time: t, Volume: TotalQuantity(orders)}
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.points) == v.max {
		copy(v.points, v.points[1:])
		v.points = v.points[:v.max-1]
	}
	v.points = append(v.points, p)
	return p
}

func (v *VolumeSeries) Points() []VolumePoint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]VolumePoint(nil), v.points...)
}
