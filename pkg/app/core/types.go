package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) Valid() bool { return s == Buy || s == Sell }

// Opposite returns the counter side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts buy/sell in any case plus the bid/ask aliases.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy", "bid", "b":
		return Buy, nil
	case "sell", "ask", "s":
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q", v)
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status is final. Terminal statuses never change.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusExpired
}

func (s Status) Valid() bool { return s == StatusActive || s.Terminal() }

type Order struct {
	ID         string    `json:"id"`
	Type       Side      `json:"type"`
	Asset      string    `json:"asset"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Expiration time.Time `json:"expiration"`
	Status     Status    `json:"status"`
}

func (o Order) Active() bool { return o.Status == StatusActive }

// ExpiredAt reports whether the expiration is strictly before now.
func (o Order) ExpiredAt(now time.Time) bool { return o.Expiration.Before(now) }

// NewOrderID returns a fresh unique order id.
func NewOrderID() string { return uuid.NewString() }
