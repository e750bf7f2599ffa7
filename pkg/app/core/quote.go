package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrReferencePriceUnavailable is returned when no price tick has arrived yet.
var ErrReferencePriceUnavailable = errors.New("reference price unavailable")

var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// QuotePrice computes the total price for quantity units at the reference
// price. Nothing is substituted when the reference price is absent.
func QuotePrice(quantity, reference float64, available bool) (float64, error) {
	if !available {
		return 0, ErrReferencePriceUnavailable
	}
	if !positiveFinite(quantity) {
		return 0, ErrInvalidQuantity
	}
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(reference)).InexactFloat64(), nil
}

// Round rounds v half away from zero to places decimal places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
