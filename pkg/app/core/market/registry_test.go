package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	require.Equal(t, 1, r.Count())
	assert.True(t, r.Tradable(DefaultSymbol))
	assert.False(t, r.Tradable("ETH-USDT"))

	m, err := r.Get(DefaultSymbol)
	require.NoError(t, err)
	assert.Equal(t, "BTC", m.BaseAsset)
	assert.Equal(t, "USDT", m.QuoteAsset)
}

func TestRegisterRejectsDuplicatesAndBlanks(t *testing.T) {
	r := NewDefaultRegistry()

	require.Error(t, r.Register(&Market{Symbol: DefaultSymbol}))
	require.Error(t, r.Register(&Market{}))
	require.Error(t, r.Register(nil))

	require.NoError(t, r.Register(&Market{Symbol: "ETH-USDT", BaseAsset: "ETH", QuoteAsset: "USDT"}))
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "BTC-USDT", list[0].Symbol)
	assert.Equal(t, "ETH-USDT", list[1].Symbol)
}

func TestPausedMarketIsNotTradable(t *testing.T) {
	r := NewDefaultRegistry()

	require.NoError(t, r.SetStatus(DefaultSymbol, Paused))
	assert.False(t, r.Tradable(DefaultSymbol))

	require.NoError(t, r.SetStatus(DefaultSymbol, Active))
	assert.True(t, r.Tradable(DefaultSymbol))

	require.Error(t, r.SetStatus("DOGE-USDT", Paused))
}
