package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthBuysBeforeSells(t *testing.T) {
	orders := []Order{
		testOrder("s1", Sell, 30500),
		testOrder("b1", Buy, 30000),
		testOrder("s2", Sell, 30600),
		testOrder("b2", Buy, 29900),
	}

	points := Depth(orders)
	require.Len(t, points, 4)
	assert.Equal(t, []Side{Buy, Buy, Sell, Sell}, []Side{points[0].Type, points[1].Type, points[2].Type, points[3].Type})
	assert.Equal(t, 30000.0, points[0].Price)
	assert.Equal(t, 30600.0, points[3].Price)
}

func TestVolumeSeriesIsBounded(t *testing.T) {
	v := NewVolumeSeries(3)
	orders := []Order{testOrder("a", Buy, 1), testOrder("b", Sell, 1)}

	for i := 0; i < 5; i++ {
		v.Record(t0.Add(time.Duration(i)*time.Second), orders[:i%2+1])
	}

	points := v.Points()
	require.Len(t, points, 3)
	assert.Equal(t, t0.Add(2*time.Second), points[0].Time)
	assert.Equal(t, t0.Add(4*time.Second), points[2].Time)
	assert.Equal(t, 1.0, points[2].Volume)
	assert.Equal(t, 2.0, points[1].Volume)
}

func TestQuotePrice(t *testing.T) {
	_, err := QuotePrice(1, 0, false)
	require.ErrorIs(t, err, ErrReferencePriceUnavailable)

	_, err = QuotePrice(0, 30000, true)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	p, err := QuotePrice(0.5, 31045.12, true)
	require.NoError(t, err)
	assert.Equal(t, 15522.56, p)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23456789, Round(1.234567891234, 8))
	assert.Equal(t, 29999.99, Round(29999.994, 2))
	assert.Equal(t, 30000.0, Round(29999.995, 2))
}
