package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/app/desk"
)

// RESTClient calls the REST API of a running desk.
type RESTClient struct {
	base string
	http *http.Client
}

func NewRESTClient(addr string) *RESTClient {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &RESTClient{
		base: strings.TrimRight(addr, "/") + "/api/v1",
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	ErrorResponse
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Code, e.ErrorResponse.Error)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (c *RESTClient) Orders(ctx context.Context, list desk.OrderList) ([]core.Order, error) {
	var out []core.Order
	q := url.Values{}
	if list != "" {
		q.Set("view", string(list))
	}
	return out, c.do(ctx, "GET", "/orders?"+q.Encode(), nil, &out)
}

func (c *RESTClient) Order(ctx context.Context, id string) (core.Order, error) {
	var out core.Order
	return out, c.do(ctx, "GET", "/orders/"+url.PathEscape(id), nil, &out)
}

func (c *RESTClient) Submit(ctx context.Context, req desk.SubmitRequest) (core.Order, error) {
	var out core.Order
	return out, c.do(ctx, "POST", "/orders", req, &out)
}

func (c *RESTClient) Accept(ctx context.Context, id string) (core.Order, error) {
	var out core.Order
	return out, c.do(ctx, "POST", "/orders/"+url.PathEscape(id)+"/accept", nil, &out)
}

func (c *RESTClient) Cancel(ctx context.Context, id string) (core.Order, error) {
	var out core.Order
	return out, c.do(ctx, "POST", "/orders/"+url.PathEscape(id)+"/cancel", nil, &out)
}

func (c *RESTClient) Remove(ctx context.Context, id string) (core.Order, error) {
	var out core.Order
	return out, c.do(ctx, "DELETE", "/orders/"+url.PathEscape(id), nil, &out)
}

func (c *RESTClient) Matches(ctx context.Context) ([]desk.Match, error) {
	var out []desk.Match
	return out, c.do(ctx, "GET", "/matches", nil, &out)
}

func (c *RESTClient) Price(ctx context.Context) (PriceInfo, error) {
	var out PriceInfo
	return out, c.do(ctx, "GET", "/price", nil, &out)
}

func (c *RESTClient) Quote(ctx context.Context, quantity float64) (QuoteInfo, error) {
	var out QuoteInfo
	q := url.Values{"quantity": {strconv.FormatFloat(quantity, 'f', -1, 64)}}
	return out, c.do(ctx, "GET", "/quote?"+q.Encode(), nil, &out)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		serr := &StatusError{Code: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&serr.ErrorResponse); err != nil {
			serr.ErrorResponse.Error = http.StatusText(resp.StatusCode)
		}
		return serr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
