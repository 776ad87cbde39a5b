// Package simulation generates deterministic, plausible price and
// 24-hour-stat data per symbol for use when the exchange gateway is
// unusable. State persists for the process lifetime so consecutive reads
// drift instead of teleporting.
package simulation

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketfeed/internal/config"
	"marketfeed/internal/core/domain"
)

// symbolState tracks simulation continuity for one symbol.
type symbolState struct {
	basePrice  float64
	lastPrice  float64
	volatility float64
}

// SnapshotFunc supplies the live cache snapshot used as a richer seed
// basis when a symbol is first simulated.
type SnapshotFunc func() []domain.LivePriceUpdate

type Engine struct {
	cfg config.Simulation

	mu     sync.Mutex
	states map[string]*symbolState
	rng    *rand.Rand

	now      func() time.Time
	snapshot SnapshotFunc
}

type Option func(*Engine)

// WithClock replaces the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandSource replaces the random source, used by tests.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.rng = rand.New(src) }
}

// WithSnapshot wires the live cache snapshot as a seed basis.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(e *Engine) { e.snapshot = fn }
}

func New(cfg config.Simulation, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		states: make(map[string]*symbolState),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seed records a real observation. The next simulated price for the
// symbol starts from this value instead of the catalog base.
func (e *Engine) Seed(symbol string, price decimal.Decimal) {
	p, _ := price.Float64()
	if p <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.states[symbol]; ok {
		st.lastPrice = p
		return
	}
	e.states[symbol] = &symbolState{
		basePrice:  p,
		lastPrice:  p,
		volatility: volatilityFor(symbol),
	}
}

// NextPrice advances the simulation for one symbol and returns the new
// price. The result is never negative and stays within an order of
// magnitude of the base price.
func (e *Engine) NextPrice(symbol string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.ensureState(symbol)
	return decimal.NewFromFloat(e.advance(st))
}

// AllPrices advances the simulation for the full catalog plus any seeded
// symbols, in stable symbol order.
func (e *Engine) AllPrices() []domain.TickerPrice {
	e.mu.Lock()
	defer e.mu.Unlock()

	prices := make([]domain.TickerPrice, 0, len(defaultCatalog)+len(e.states))
	for _, sym := range e.knownSymbols() {
		st := e.ensureState(sym)
		prices = append(prices, domain.TickerPrice{
			Symbol: sym,
			Price:  decimal.NewFromFloat(e.advance(st)),
		})
	}
	return prices
}

// DailyStats derives a 24-hour stat record around the current simulated
// price: a random swing within the configured band decides the open, and
// every other field is computed from it so the record is internally
// consistent.
func (e *Engine) DailyStats(symbol string) domain.DailyStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.ensureState(symbol)
	return e.statsFor(symbol, st)
}

// AllDailyStats returns stats for the catalog plus seeded symbols.
func (e *Engine) AllDailyStats() []domain.DailyStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := make([]domain.DailyStats, 0, len(defaultCatalog)+len(e.states))
	for _, sym := range e.knownSymbols() {
		st := e.ensureState(sym)
		stats = append(stats, e.statsFor(sym, st))
	}
	return stats
}

// advance computes the next price for a symbol state. Caller holds e.mu.
func (e *Engine) advance(st *symbolState) float64 {
	nowT := e.now()
	minuteOfDay := nowT.Hour()*60 + nowT.Minute()

	// Shared market-wide mood: a smooth oscillation bounded to the trend
	// amplitude, identical for every symbol in a given tick
	trend := math.Sin(float64(minuteOfDay)/240*math.Pi) * e.cfg.TrendAmplitude

	// Per-call noise in [-0.005, 0.005), scaled with the trend by the
	// symbol's volatility multiplier
	noise := (e.rng.Float64() - 0.5) * 0.01
	candidate := st.lastPrice * (1 + (noise+trend)*st.volatility)

	// Mean-reversion safety valve: every reversion interval, blend part
	// of the candidate back toward the base price to bound drift
	if e.cfg.ReversionIntervalMinutes > 0 && minuteOfDay%e.cfg.ReversionIntervalMinutes == 0 {
		w := e.cfg.ReversionWeight
		candidate = candidate*(1-w) + st.basePrice*w
	}

	// Keep the asset's order of magnitude
	if candidate < st.basePrice*0.1 {
		candidate = st.basePrice * 0.1
	}
	if candidate > st.basePrice*10 {
		candidate = st.basePrice * 10
	}

	candidate = roundPrice(candidate)
	st.lastPrice = candidate
	return candidate
}

func (e *Engine) statsFor(symbol string, st *symbolState) domain.DailyStats {
	last := st.lastPrice

	swing := (e.rng.Float64()*2 - 1) * e.cfg.StatsSwingPercent
	open := last / (1 + swing)
	change := last - open

	high := math.Max(open, last) * (1 + e.rng.Float64()*0.01)
	low := math.Min(open, last) * (1 - e.rng.Float64()*0.01)

	// Base volume is price-independent; only quote volume scales with price
	volume := math.Round((1000+e.rng.Float64()*9000)*100) / 100
	quoteVolume := volume * last

	closeTime := e.now()
	openTime := closeTime.Add(-24 * time.Hour)

	return domain.DailyStats{
		Symbol:             symbol,
		PriceChange:        decimal.NewFromFloat(change).Round(8),
		PriceChangePercent: decimal.NewFromFloat(swing * 100).Round(3),
		OpenPrice:          decimal.NewFromFloat(roundPrice(open)),
		HighPrice:          decimal.NewFromFloat(roundPrice(high)),
		LowPrice:           decimal.NewFromFloat(roundPrice(low)),
		LastPrice:          decimal.NewFromFloat(last),
		Volume:             decimal.NewFromFloat(volume),
		QuoteVolume:        decimal.NewFromFloat(quoteVolume).Round(2),
		OpenTime:           openTime.UnixMilli(),
		CloseTime:          closeTime.UnixMilli(),
	}
}

// ensureState returns the symbol's state, creating it on first use from
// the live cache snapshot, the default catalog, or a hash-derived base,
// in that order. Caller holds e.mu.
func (e *Engine) ensureState(symbol string) *symbolState {
	if st, ok := e.states[symbol]; ok {
		return st
	}

	if e.snapshot != nil {
		for _, u := range e.snapshot() {
			if u.Symbol == symbol && u.Price.IsPositive() {
				p, _ := u.Price.Float64()
				st := &symbolState{basePrice: p, lastPrice: p, volatility: volatilityFor(symbol)}
				e.states[symbol] = st
				return st
			}
		}
	}

	if entry, ok := defaultCatalog[symbol]; ok {
		st := &symbolState{basePrice: entry.BasePrice, lastPrice: entry.BasePrice, volatility: entry.Volatility}
		e.states[symbol] = st
		return st
	}

	base := hashBasePrice(symbol)
	st := &symbolState{basePrice: base, lastPrice: base, volatility: unknownSymbolVolatility}
	e.states[symbol] = st
	return st
}

func (e *Engine) knownSymbols() []string {
	seen := make(map[string]bool, len(defaultCatalog)+len(e.states))
	symbols := make([]string, 0, len(defaultCatalog)+len(e.states))
	for sym := range defaultCatalog {
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	for sym := range e.states {
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// hashBasePrice derives a stable base price for a symbol absent from the
// catalog, so repeated queries for the same unknown symbol get the same
// order of magnitude instead of pure randomness.
func hashBasePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	v := h.Sum32()

	magnitude := math.Pow(10, float64(v%5)-1) // 0.1 to 1000
	mantissa := 1 + float64(v/5%900)/100.0    // 1.00 to 9.99
	return roundPrice(mantissa * magnitude)
}

func volatilityFor(symbol string) float64 {
	if entry, ok := defaultCatalog[symbol]; ok {
		return entry.Volatility
	}
	return unknownSymbolVolatility
}

// roundPrice rounds to a precision appropriate to the price magnitude:
// more decimal places for cheaper assets.
func roundPrice(price float64) float64 {
	switch {
	case price > 1000:
		return math.Round(price*100) / 100
	case price > 10:
		return math.Round(price*1000) / 1000
	case price > 1:
		return math.Round(price*10000) / 10000
	default:
		return math.Round(price*1000000) / 1000000
	}
}
