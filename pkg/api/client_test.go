package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/app/desk"
)

func TestRESTClientAgainstServer(t *testing.T) {
	env := newTestEnv(t)
	c := NewRESTClient(env.ts.URL)
	ctx := context.Background()

	_, err := c.Quote(ctx, 1)
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusServiceUnavailable, serr.Code)

	env.app.Store().SetReferencePrice(30000)
	p, err := c.Price(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30000.0, p.Price)

	buy, err := c.Submit(ctx, desk.SubmitRequest{OrderRequest: core.OrderRequest{
		Type: core.Buy, Asset: "BTC-USDT", Quantity: 1, Price: 30100,
		ExpirationType: core.ExpireAfterDuration, ExpirationValue: "60",
	}})
	require.NoError(t, err)
	sell, err := c.Submit(ctx, desk.SubmitRequest{
		OrderRequest: core.OrderRequest{
			Type: core.Sell, Asset: "BTC-USDT", Quantity: 0.5,
			ExpirationType: core.ExpireAfterDuration, ExpirationValue: "60",
		},
		AutoPrice: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 15000.0, sell.Price)

	matches, err := c.Matches(ctx)
	require.NoError(t, err)
	assert.Len(t, matches, 2, "sell at 15000 crosses the buy")

	q, err := c.Quote(ctx, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 7500.0, q.Price)

	got, err := c.Accept(ctx, buy.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFilled, got.Status)

	_, err = c.Cancel(ctx, buy.ID)
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusConflict, serr.Code)

	active, err := c.Orders(ctx, desk.ListActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, sell.ID, active[0].ID)

	_, err = c.Remove(ctx, sell.ID)
	require.NoError(t, err)
	_, err = c.Order(ctx, sell.ID)
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.Code)
}
