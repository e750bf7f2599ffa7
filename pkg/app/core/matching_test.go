package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func ids(orders []Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

// pairwiseCandidates is the literal quadratic definition.
func pairwiseCandidates(orders []Order) []Order {
	active := Filter(orders, Order.Active)
	out := []Order{}
	for _, a := range active {
		for _, b := range active {
			if Crosses(a, b) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func TestMatchCandidatesCrossingPair(t *testing.T) {
	orders := []Order{
		testOrder("A", Buy, 30100),
		testOrder("B", Sell, 30000),
		testOrder("C", Sell, 30200),
	}

	assert.Equal(t, []string{"A", "B"}, ids(MatchCandidates(orders)))
}

func TestMatchCandidatesEqualPricesCross(t *testing.T) {
	orders := []Order{
		testOrder("A", Buy, 30000),
		testOrder("B", Sell, 30000),
	}

	assert.Equal(t, []string{"A", "B"}, ids(MatchCandidates(orders)))
}

func TestMatchCandidatesIgnoresInactiveAndOtherAssets(t *testing.T) {
	filled := testOrder("F", Sell, 29000)
	filled.Status = StatusFilled
	eth := testOrder("E", Sell, 1)
	eth.Asset = "ETH-USDT"

	orders := []Order{
		testOrder("A", Buy, 30100),
		filled,
		eth,
	}

	assert.Empty(t, MatchCandidates(orders))
}

func TestMatchCandidatesSameSideNeverMatches(t *testing.T) {
	orders := []Order{
		testOrder("A", Buy, 30100),
		testOrder("B", Buy, 29000),
	}

	assert.Empty(t, MatchCandidates(orders))
}

func TestMatchCandidatesDoesNotMutate(t *testing.T) {
	orders := []Order{testOrder("A", Buy, 30100), testOrder("B", Sell, 30000)}
	before := append([]Order(nil), orders...)

	MatchCandidates(orders)

	assert.Equal(t, before, orders)
}

func TestCounterOrdersBestFirst(t *testing.T) {
	orders := []Order{
		testOrder("A", Buy, 30100),
		testOrder("S1", Sell, 30050),
		testOrder("S2", Sell, 29900),
		testOrder("S3", Sell, 30200),
		testOrder("S4", Sell, 29900),
	}

	got := CounterOrders(orders, orders[0])
	assert.Equal(t, []string{"S2", "S4", "S1"}, ids(got))

	sells := CounterOrders(orders, orders[1])
	require.Len(t, sells, 1)
	assert.Equal(t, "A", sells[0].ID)
}

func genOrders(t *rapid.T) []Order {
	n := rapid.IntRange(0, 30).Draw(t, "n")
	out := make([]Order, n)
	for i := range out {
		o := testOrder(fmt.Sprintf("o%d", i), rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side"),
			float64(rapid.IntRange(29000, 29010).Draw(t, "price")))
		o.Asset = rapid.SampledFrom([]string{"BTC-USDT", "ETH-USDT"}).Draw(t, "asset")
		o.Status = rapid.SampledFrom([]Status{StatusActive, StatusActive, StatusFilled, StatusExpired}).Draw(t, "status")
		out[i] = o
	}
	return out
}

func TestPropertyMatchCandidatesEqualsPairwise(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orders := genOrders(t)
		want := ids(pairwiseCandidates(orders))
		got := ids(MatchCandidates(orders))
		if fmt.Sprint(want) != fmt.Sprint(got) {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
	})
}

func TestPropertyCrossingPairIsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orders := genOrders(t)
		in := map[string]bool{}
		for _, o := range MatchCandidates(orders) {
			in[o.ID] = true
		}
		for _, a := range orders {
			for _, b := range orders {
				if a.Active() && b.Active() && Crosses(a, b) {
					if !Crosses(b, a) {
						t.Fatalf("crossing is not symmetric for %s/%s", a.ID, b.ID)
					}
					if !in[a.ID] || !in[b.ID] {
						t.Fatalf("crossing pair %s/%s not both reported", a.ID, b.ID)
					}
				}
			}
		}
	})
}
