package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holdingServer accepts WebSocket connections and keeps them open until
// the client goes away.
func holdingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		conn.Read(r.Context())
	}))
}

func TestStreamEndpoint(t *testing.T) {
	s := NewStream("wss://stream.example.com:9443", nil)
	endpoint := s.streamEndpoint([]string{"BTCUSDT", "ETHUSDT"})
	assert.Equal(t, "wss://stream.example.com:9443/stream?streams=btcusdt@trade/ethusdt@trade", endpoint)
}

func TestSubscriptionKeyIgnoresOrder(t *testing.T) {
	a := subscriptionKey([]string{"BTCUSDT", "ethusdt"})
	b := subscriptionKey([]string{"ETHUSDT", "btcusdt"})
	assert.Equal(t, a, b)

	c := subscriptionKey([]string{"BTCUSDT"})
	assert.NotEqual(t, a, c)
}

func TestDispatch(t *testing.T) {
	s := NewStream("", nil)

	var gotSymbol string
	var gotPrice decimal.Decimal
	handler := func(symbol string, price decimal.Decimal) {
		gotSymbol = symbol
		gotPrice = price
	}

	s.dispatch([]byte(`{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"96000.50","T":1700000000000}}`), handler)
	assert.Equal(t, "BTCUSDT", gotSymbol)
	assert.True(t, gotPrice.Equal(decimal.RequireFromString("96000.50")))

	// Non-trade events and garbage are skipped without calling the handler
	gotSymbol = ""
	s.dispatch([]byte(`{"stream":"btcusdt@depth","data":{"e":"depthUpdate","s":"BTCUSDT"}}`), handler)
	assert.Empty(t, gotSymbol)

	s.dispatch([]byte(`not json`), handler)
	assert.Empty(t, gotSymbol)

	s.dispatch([]byte(`{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"bogus"}}`), handler)
	assert.Empty(t, gotSymbol)
}

func TestStreamReceivesTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream", r.URL.Path)
		assert.Equal(t, "btcusdt@trade", r.URL.Query().Get("streams"))

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		msg := `{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"96777.10","T":1700000000000}}`
		if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
			return
		}
		// Hold the connection open until the client goes away
		conn.Read(ctx)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewStream(wsURL, server.Client())

	trades := make(chan decimal.Decimal, 1)
	handler := func(symbol string, price decimal.Decimal) {
		if symbol == "BTCUSDT" {
			select {
			case trades <- price:
			default:
			}
		}
	}

	require.NoError(t, stream.Start(context.Background(), []string{"BTCUSDT"}, handler))
	defer stream.Stop()

	select {
	case price := <-trades:
		assert.True(t, price.Equal(decimal.RequireFromString("96777.10")))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for trade event")
	}

	// Same symbol set again is a no-op
	require.NoError(t, stream.Start(context.Background(), []string{"BTCUSDT"}, handler))

	require.NoError(t, stream.Stop())
	assert.False(t, stream.IsConnected())
	// Stop is idempotent
	require.NoError(t, stream.Stop())
}

func TestStreamRecoversAfterContextCancel(t *testing.T) {
	server := holdingServer(t)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewStream(wsURL, server.Client())
	handler := func(string, decimal.Decimal) {}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, stream.Start(ctx, []string{"BTCUSDT"}, handler))
	require.Eventually(t, stream.IsConnected, 5*time.Second, 10*time.Millisecond)

	// External cancellation ends the subscription; the stream must stop
	// reporting a live connection instead of staying stuck
	cancel()
	require.Eventually(t, func() bool { return !stream.IsConnected() }, 5*time.Second, 10*time.Millisecond)

	// And the same symbol set must subscribe afresh, not hit the no-op path
	require.NoError(t, stream.Start(context.Background(), []string{"BTCUSDT"}, handler))
	require.Eventually(t, stream.IsConnected, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, stream.Stop())
	assert.False(t, stream.IsConnected())
}

func TestStreamConcurrentStartsKeepOneSubscription(t *testing.T) {
	server := holdingServer(t)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewStream(wsURL, server.Client())
	handler := func(string, decimal.Decimal) {}

	sets := [][]string{{"BTCUSDT"}, {"ETHUSDT"}, {"BTCUSDT", "ETHUSDT"}}

	var wg sync.WaitGroup
	for _, set := range sets {
		wg.Add(1)
		go func(set []string) {
			defer wg.Done()
			assert.NoError(t, stream.Start(context.Background(), set, handler))
		}(set)
	}
	wg.Wait()

	// The starts serialize: each distinct set replaces the previous
	// subscription, so exactly one survives
	stream.mu.Lock()
	running := stream.running
	gen := stream.gen
	key := stream.symbolKey
	stream.mu.Unlock()

	assert.True(t, running)
	assert.Equal(t, uint64(len(sets)), gen)
	assert.NotEmpty(t, key)

	require.NoError(t, stream.Stop())
	assert.False(t, stream.IsConnected())
}
