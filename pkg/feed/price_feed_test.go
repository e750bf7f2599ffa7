package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/orderdesk/pkg/app/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// streamServer sends msgs on every connection, then either hangs up or
// waits for the client to leave.
type streamServer struct {
	msgs   []string
	hangUp bool
	conns  atomic.Int32
}

func (s *streamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.conns.Add(1)

	for _, m := range s.msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			return
		}
	}
	if s.hangUp {
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type recorder struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	dropped      []string
}

func (r *recorder) Connected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
}

func (r *recorder) Disconnected(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected++
}

func (r *recorder) Dropped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, reason)
}

func (r *recorder) drops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dropped...)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		msg  string
		want float64
		err  error
	}{
		{`{"e":"trade","s":"BTCUSDT","p":"31045.12","q":"0.01"}`, 31045.12, nil},
		{`{"p":30000}`, 30000, nil},
		{`{"p":"0.00000001"}`, 0.00000001, nil},
		{`not json`, 0, ErrMalformed},
		{`{"p":"abc"}`, 0, ErrMalformed},
		{`{"p":"NaN"}`, 0, ErrMalformed},
		{`{"q":"1"}`, 0, ErrMissingPrice},
		{`{"p":null}`, 0, ErrMissingPrice},
		{`{"p":"0"}`, 0, ErrNonPositive},
		{`{"p":"-5"}`, 0, ErrNonPositive},
		{`{"p":"1e400"}`, 0, ErrOutOfRange},
		{`{"p":"1e-400"}`, 0, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, err := ParsePrice([]byte(tt.msg))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandleMessageKeepsLastGoodPrice(t *testing.T) {
	store := core.NewStore()
	rec := &recorder{}
	f := New(Config{}, store, nil, nil, rec)

	assert.True(t, f.HandleMessage([]byte(`{"p":"31045.12"}`)))
	assert.False(t, f.HandleMessage([]byte(`{"p":"oops"}`)))
	assert.False(t, f.HandleMessage([]byte(`{"p":"-1"}`)))
	assert.False(t, f.HandleMessage([]byte(`{"p":"1e400"}`)))
	assert.False(t, f.HandleMessage([]byte(`{"p":"1e-400"}`)))

	p, ok := store.ReferencePrice()
	require.True(t, ok)
	assert.Equal(t, 31045.12, p)
	assert.Equal(t, []string{"malformed", "non_positive", "out_of_range", "out_of_range"}, rec.drops())
}

func TestRunStreamsPrices(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	srv := httptest.NewServer(&streamServer{msgs: []string{`{"p":"30000.5"}`, `garbage`, `{"p":"31045.12"}`}})
	defer srv.Close()

	store := core.NewStore()
	rec := &recorder{}
	f := New(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, store, nil, nil, rec)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		p, ok := store.ReferencePrice()
		return ok && p == 31045.12
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"malformed"}, rec.drops())

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestRunReconnectsAfterHangUp(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	h := &streamServer{msgs: []string{`{"p":"30000"}`}, hangUp: true}
	srv := httptest.NewServer(h)
	defer srv.Close()

	rec := &recorder{}
	f := New(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, core.NewStore(), nil, nil, rec)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return h.conns.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.GreaterOrEqual(t, rec.disconnected, 2)
}

func TestRunRetriesFailedDials(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	rec := &recorder{}
	f := New(Config{URL: url, ReconnectDelay: 5 * time.Millisecond}, core.NewStore(), nil, nil, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := f.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Zero(t, rec.connected)
	assert.Greater(t, rec.disconnected, 1)
}
