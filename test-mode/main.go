package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
)

// tickerPrice mirrors the exchange's /api/v3/ticker/price payload
type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// dailyStats mirrors the exchange's /api/v3/ticker/24hr payload
type dailyStats struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
}

// streamFrame is one combined-stream WebSocket message
type streamFrame struct {
	Stream string     `json:"stream"`
	Data   tradeEvent `json:"data"`
}

type tradeEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// SymbolData holds base price and volatility for each symbol
type SymbolData struct {
	BasePrice    float64
	CurrentPrice float64
	Volatility   float64 // percentage as decimal (0.02 = 2%)
	Trend        float64 // 1.0 for up, -1.0 for down
	mu           sync.RWMutex
}

// MockExchange serves the exchange's REST and stream surface with
// generated data
type MockExchange struct {
	baseData map[string]*SymbolData
	rng      *rand.Rand
	rngMu    sync.Mutex

	clients    map[chan streamFrame]map[string]bool // subscriber -> subscribed streams
	clientsMux sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		port     = flag.Int("port", 50101, "Port for the mock exchange")
		helpFlag = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  test-exchange [--port <N>]\n")
		fmt.Fprintf(os.Stderr, "  test-exchange --help\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --port N    Port for the mock exchange (default: 50101)\n")
	}

	flag.Parse()

	if *helpFlag {
		flag.Usage()
		os.Exit(0)
	}

	slog.Info("Starting mock exchange...")

	exchange := NewMockExchange()
	exchange.StartDataGeneration()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/ticker/price", exchange.handleTickerPrice)
	mux.HandleFunc("GET /api/v3/ticker/24hr", exchange.handleTicker24hr)
	mux.HandleFunc("/stream", exchange.handleStream)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("Mock exchange started successfully", "port", *port)
	fmt.Printf("Mock exchange running on port %d\n", *port)
	fmt.Printf("Press Ctrl+C to stop...\n\n")

	<-sigChan
	slog.Info("Shutting down...")

	exchange.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)

	slog.Info("Mock exchange stopped")
}

// NewMockExchange creates a generator with realistic crypto base prices
func NewMockExchange() *MockExchange {
	ctx, cancel := context.WithCancel(context.Background())

	baseData := map[string]*SymbolData{
		"BTCUSDT": {
			BasePrice:    96000.0,
			CurrentPrice: 96000.0,
			Volatility:   0.02, // 2%
			Trend:        1.0,
		},
		"DOGEUSDT": {
			BasePrice:    0.32,
			CurrentPrice: 0.32,
			Volatility:   0.05, // 5% (more volatile)
			Trend:        1.0,
		},
		"TONUSDT": {
			BasePrice:    5.45,
			CurrentPrice: 5.45,
			Volatility:   0.04, // 4%
			Trend:        1.0,
		},
		"SOLUSDT": {
			BasePrice:    210.0,
			CurrentPrice: 210.0,
			Volatility:   0.03, // 3%
			Trend:        1.0,
		},
		"ETHUSDT": {
			BasePrice:    3300.0,
			CurrentPrice: 3300.0,
			Volatility:   0.025, // 2.5%
			Trend:        1.0,
		},
	}

	return &MockExchange{
		baseData: baseData,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		clients:  make(map[chan streamFrame]map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// handleTickerPrice serves GET /api/v3/ticker/price
func (e *MockExchange) handleTickerPrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	if symbol != "" {
		data, ok := e.baseData[strings.ToUpper(symbol)]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"code": -1121,
				"msg":  "Invalid symbol.",
			})
			return
		}
		writeJSON(w, http.StatusOK, tickerPrice{
			Symbol: strings.ToUpper(symbol),
			Price:  formatPrice(data.current()),
		})
		return
	}

	all := make([]tickerPrice, 0, len(e.baseData))
	for sym, data := range e.baseData {
		all = append(all, tickerPrice{Symbol: sym, Price: formatPrice(data.current())})
	}
	writeJSON(w, http.StatusOK, all)
}

// handleTicker24hr serves GET /api/v3/ticker/24hr
func (e *MockExchange) handleTicker24hr(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	if symbol != "" {
		data, ok := e.baseData[strings.ToUpper(symbol)]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"code": -1121,
				"msg":  "Invalid symbol.",
			})
			return
		}
		writeJSON(w, http.StatusOK, e.statsFor(strings.ToUpper(symbol), data))
		return
	}

	all := make([]dailyStats, 0, len(e.baseData))
	for sym, data := range e.baseData {
		all = append(all, e.statsFor(sym, data))
	}
	writeJSON(w, http.StatusOK, all)
}

// statsFor derives a consistent 24hr record around the current price
func (e *MockExchange) statsFor(symbol string, data *SymbolData) dailyStats {
	last := data.current()
	open := data.BasePrice
	change := last - open
	changePercent := 0.0
	if open != 0 {
		changePercent = change / open * 100
	}

	high := math.Max(last, open) * 1.01
	low := math.Min(last, open) * 0.99
	now := time.Now()

	e.rngMu.Lock()
	volume := math.Round((1000+e.rng.Float64()*9000)*100) / 100
	e.rngMu.Unlock()

	return dailyStats{
		Symbol:             symbol,
		PriceChange:        formatPrice(change),
		PriceChangePercent: fmt.Sprintf("%.3f", changePercent),
		OpenPrice:          formatPrice(open),
		HighPrice:          formatPrice(high),
		LowPrice:           formatPrice(low),
		LastPrice:          formatPrice(last),
		Volume:             fmt.Sprintf("%.2f", volume),
		QuoteVolume:        fmt.Sprintf("%.2f", volume*last),
		OpenTime:           now.Add(-24 * time.Hour).UnixMilli(),
		CloseTime:          now.UnixMilli(),
	}
}

// handleStream serves the combined trade stream over WebSocket.
// Clients connect with /stream?streams=btcusdt@trade/ethusdt@trade
func (e *MockExchange) handleStream(w http.ResponseWriter, r *http.Request) {
	streams := strings.Split(r.URL.Query().Get("streams"), "/")
	subscribed := make(map[string]bool, len(streams))
	for _, s := range streams {
		if s != "" {
			subscribed[strings.ToLower(s)] = true
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("WebSocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	frames := make(chan streamFrame, 64)

	e.clientsMux.Lock()
	e.clients[frames] = subscribed
	clientCount := len(e.clients)
	e.clientsMux.Unlock()

	slog.Info("Stream client connected", "clients", clientCount, "streams", len(subscribed))

	defer func() {
		e.clientsMux.Lock()
		delete(e.clients, frames)
		clientCount := len(e.clients)
		e.clientsMux.Unlock()
		slog.Info("Stream client disconnected", "clients", clientCount)
	}()

	ctx := r.Context()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ctx.Done():
			return
		case frame := <-frames:
			payload, err := json.Marshal(frame)
			if err != nil {
				slog.Error("Failed to marshal frame", "error", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// StartDataGeneration starts the per-symbol price walkers
func (e *MockExchange) StartDataGeneration() {
	for symbol := range e.baseData {
		go e.generateDataForSymbol(symbol)
	}

	go e.reportStats()
}

// generateDataForSymbol walks the price and broadcasts trade frames
func (e *MockExchange) generateDataForSymbol(symbol string) {
	symbolData := e.baseData[symbol]
	streamName := strings.ToLower(symbol) + "@trade"

	// Unique random source per symbol
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(len(symbol))))

	// Variable interval between updates (500ms to 3000ms)
	ticker := time.NewTicker(time.Duration(500+rng.Intn(2500)) * time.Millisecond)
	defer ticker.Stop()

	messageCount := 0

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			newPrice := e.generateNextPrice(rng, symbolData)

			symbolData.mu.Lock()
			symbolData.CurrentPrice = newPrice
			symbolData.mu.Unlock()

			frame := streamFrame{
				Stream: streamName,
				Data: tradeEvent{
					EventType: "trade",
					Symbol:    symbol,
					Price:     formatPrice(newPrice),
					TradeTime: time.Now().UnixMilli(),
				},
			}

			e.broadcast(streamName, frame)

			messageCount++
			if messageCount%50 == 0 {
				slog.Debug("Generated trades", "symbol", symbol, "count", messageCount, "price", newPrice)
			}

			// Randomize next interval
			ticker.Reset(time.Duration(500+rng.Intn(2500)) * time.Millisecond)
		}
	}
}

// broadcast delivers a frame to every client subscribed to the stream
func (e *MockExchange) broadcast(streamName string, frame streamFrame) {
	e.clientsMux.RLock()
	defer e.clientsMux.RUnlock()

	for frames, subscribed := range e.clients {
		if !subscribed[streamName] {
			continue
		}
		select {
		case frames <- frame:
		default:
			// Slow client, drop the frame
		}
	}
}

// generateNextPrice creates the next price using realistic market movements
func (e *MockExchange) generateNextPrice(rng *rand.Rand, symbolData *SymbolData) float64 {
	symbolData.mu.Lock()
	defer symbolData.mu.Unlock()

	// Random walk with trend
	change := rng.NormFloat64() * symbolData.Volatility * symbolData.CurrentPrice

	// Add trend bias (10% of the change is trend-based)
	trendStrength := 0.1
	change += change * trendStrength * symbolData.Trend

	newPrice := symbolData.CurrentPrice + change

	// Keep price within reasonable bounds (±20% from base price)
	maxDeviation := symbolData.BasePrice * 0.2
	if newPrice > symbolData.BasePrice+maxDeviation {
		newPrice = symbolData.BasePrice + maxDeviation
		symbolData.Trend = -1.0 // Reverse trend
	} else if newPrice < symbolData.BasePrice-maxDeviation {
		newPrice = symbolData.BasePrice - maxDeviation
		symbolData.Trend = 1.0 // Reverse trend
	}

	// Ensure positive price
	if newPrice <= 0 {
		newPrice = symbolData.BasePrice * 0.01 // 1% of base price as minimum
	}

	newPrice = roundPrice(newPrice)

	// Occasionally change trend (5% chance)
	if rng.Float64() < 0.05 {
		symbolData.Trend = -symbolData.Trend
	}

	// Rare market events (0.1% chance for larger moves)
	if rng.Float64() < 0.001 {
		eventMultiplier := 1.0 + (rng.Float64()-0.5)*0.1 // ±5% spike
		newPrice = roundPrice(newPrice * eventMultiplier)
		slog.Debug("Market event simulated", "multiplier", eventMultiplier)
	}

	return newPrice
}

// roundPrice rounds price to appropriate decimal places based on value
func roundPrice(price float64) float64 {
	if price > 1000 {
		// High-value coins (like BTC): 2 decimal places
		return math.Round(price*100) / 100
	} else if price > 10 {
		// Medium-value coins: 3 decimal places
		return math.Round(price*1000) / 1000
	} else {
		// Low-value coins: 6 decimal places
		return math.Round(price*1000000) / 1000000
	}
}

func formatPrice(price float64) string {
	return fmt.Sprintf("%.8f", price)
}

func (d *SymbolData) current() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.CurrentPrice
}

// reportStats periodically logs statistics
func (e *MockExchange) reportStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.clientsMux.RLock()
			clientCount := len(e.clients)
			e.clientsMux.RUnlock()
			slog.Info("Mock exchange stats", "stream_clients", clientCount)
		}
	}
}

// Shutdown stops data generation
func (e *MockExchange) Shutdown() {
	e.cancel()

	// Give time for connections to close
	time.Sleep(1 * time.Second)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
