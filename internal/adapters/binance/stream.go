package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"

	"marketfeed/internal/core/port"
)

const reconnectInterval = 5 * time.Second

// Stream maintains a combined trade-event subscription over WebSocket and
// forwards each trade to the registered handler.
type Stream struct {
	wsURL      string
	httpClient *http.Client

	mu        sync.Mutex
	running   bool
	symbolKey string
	cancel    context.CancelFunc
	conn      *websocket.Conn
	gen       uint64

	connected atomic.Bool
}

// NewStream creates a stream bound to the exchange WebSocket base URL.
// The HTTP client carries the proxy configuration from the transport
// factory; WebSocket dials go through the same route as REST calls.
func NewStream(wsURL string, httpClient *http.Client) *Stream {
	return &Stream{
		wsURL:      strings.TrimRight(wsURL, "/"),
		httpClient: httpClient,
	}
}

// Start opens the subscription for the given symbols. Starting with a
// symbol set that is already subscribed is a no-op; a different set
// replaces the current subscription.
func (s *Stream) Start(ctx context.Context, symbols []string, handler port.TradeHandler) error {
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to subscribe")
	}

	key := subscriptionKey(symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running && s.symbolKey == key {
		slog.Info("Stream already subscribed", "symbols", len(symbols))
		return nil
	}

	// Replacing an existing subscription: tear the old one down first
	s.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	s.gen++
	s.running = true
	s.symbolKey = key
	s.cancel = cancel

	go s.run(runCtx, s.gen, symbols, handler)

	slog.Info("Trade stream started", "symbols", len(symbols))
	return nil
}

// Stop terminates the subscription and releases the connection. Safe to
// call when not running.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *Stream) stopLocked() {
	if !s.running {
		return
	}

	s.running = false
	s.symbolKey = ""
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		s.conn.Close(websocket.StatusNormalClosure, "stream stopped")
		s.conn = nil
	}
	s.connected.Store(false)

	slog.Info("Trade stream stopped")
}

// IsConnected reports whether the WebSocket connection is currently up.
func (s *Stream) IsConnected() bool {
	return s.connected.Load()
}

// run dials and reads until the context is cancelled, redialing after
// connection loss. When the context dies externally the subscription is
// over, so finishRun resets the stream state and a later Start with the
// same symbol set subscribes afresh.
func (s *Stream) run(ctx context.Context, gen uint64, symbols []string, handler port.TradeHandler) {
	endpoint := s.streamEndpoint(symbols)

	defer s.finishRun(gen)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connectAndRead(ctx, gen, endpoint, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Stream connection lost, reconnecting", "error", err, "retry_in", reconnectInterval)
		}

		s.setDisconnected(gen)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
		}
	}
}

// finishRun clears the state owned by one run goroutine. The generation
// check keeps a dying run from clobbering a replacement subscription that
// Start already installed.
func (s *Stream) finishRun(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}

	s.running = false
	s.symbolKey = ""
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.conn = nil
	s.connected.Store(false)
}

func (s *Stream) setDisconnected(gen uint64) {
	s.mu.Lock()
	if s.gen == gen {
		s.connected.Store(false)
	}
	s.mu.Unlock()
}

func (s *Stream) connectAndRead(ctx context.Context, gen uint64, endpoint string, handler port.TradeHandler) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient: s.httpClient,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial stream: %w", err)
	}

	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "stream stopped")
		return nil
	}
	s.conn = conn
	s.connected.Store(true)
	s.mu.Unlock()

	slog.Info("Stream connected", "endpoint", endpoint)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		s.dispatch(data, handler)
	}
}

// dispatch parses one combined-stream message and forwards the trade.
// Malformed messages are logged and skipped; one bad event must not take
// the stream down.
func (s *Stream) dispatch(data []byte, handler port.TradeHandler) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Failed to parse stream message", "error", err)
		return
	}
	if msg.Data.EventType != "trade" || msg.Data.Symbol == "" {
		return
	}

	price, err := decimal.NewFromString(msg.Data.Price)
	if err != nil {
		slog.Warn("Failed to parse trade price", "symbol", msg.Data.Symbol, "price", msg.Data.Price, "error", err)
		return
	}

	handler(msg.Data.Symbol, price)
}

// streamEndpoint builds the combined-stream URL, e.g.
// wss://host/stream?streams=btcusdt@trade/ethusdt@trade
func (s *Stream) streamEndpoint(symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, strings.ToLower(sym)+"@trade")
	}
	return fmt.Sprintf("%s/stream?streams=%s", s.wsURL, strings.Join(streams, "/"))
}

// subscriptionKey canonicalizes a symbol set so Start can detect repeats
// regardless of ordering.
func subscriptionKey(symbols []string) string {
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(sym)))
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ",")
}

type streamMessage struct {
	Stream string     `json:"stream"`
	Data   tradeEvent `json:"data"`
}

type tradeEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}
