// Package livecache holds the latest known price per symbol, updated by
// the streaming subscription, and broadcasts updates to subscribers. It
// is the process-wide source of truth for the freshest known price.
package livecache

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
)

// symbolEntry owns the state for one symbol. Each entry has its own lock
// so updates to different symbols do not block each other; updates to the
// same symbol are strictly ordered.
type symbolEntry struct {
	mu        sync.Mutex
	price     decimal.Decimal
	updatedMs int64
	source    domain.PriceSource
	hasValue  bool
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]*symbolEntry

	lastUpdateMs atomic.Int64
	threshold    float64
	bus          *bus
	now          func() time.Time
}

// Option customizes cache construction, used by tests.
type Option func(*Cache)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache. threshold is the relative change (e.g.
// 0.01 for 1%) above which SignificantChange events fire.
func New(threshold float64, opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*symbolEntry),
		threshold: threshold,
		bus:       newBus(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update writes the new price and publishes a LivePriceUpdate, plus a
// SignificantChange when the relative move against the previous value
// exceeds the threshold. Entries are last-write-wins, one per symbol.
func (c *Cache) Update(symbol string, price decimal.Decimal, source domain.PriceSource) {
	e := c.entry(symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.price
	hadPrev := e.hasValue

	ts := c.now().UnixMilli()
	e.price = price
	e.updatedMs = ts
	e.source = source
	e.hasValue = true
	c.lastUpdateMs.Store(ts)

	update := domain.LivePriceUpdate{
		Symbol:      symbol,
		Price:       price,
		TimestampMs: ts,
		Source:      source,
	}

	// Publishing while holding the entry lock keeps same-symbol delivery
	// in production order.
	c.bus.publishUpdate(update)

	if hadPrev && prev.IsPositive() {
		ratio, _ := price.Sub(prev).Div(prev).Float64()
		if math.Abs(ratio) > c.threshold {
			c.bus.publishSignificant(domain.SignificantChange{
				LivePriceUpdate: update,
				PreviousPrice:   prev,
				ChangePercent:   ratio * 100,
			})
		}
	}
}

// Get returns the latest price for a symbol.
func (c *Cache) Get(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasValue {
		return decimal.Decimal{}, false
	}
	return e.price, true
}

// GetUpdate returns the full entry including its update timestamp.
func (c *Cache) GetUpdate(symbol string) (domain.LivePriceUpdate, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return domain.LivePriceUpdate{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasValue {
		return domain.LivePriceUpdate{}, false
	}
	return domain.LivePriceUpdate{
		Symbol:      symbol,
		Price:       e.price,
		TimestampMs: e.updatedMs,
		Source:      e.source,
	}, true
}

// Snapshot returns all entries at call time.
func (c *Cache) Snapshot() []domain.LivePriceUpdate {
	c.mu.RLock()
	entries := make(map[string]*symbolEntry, len(c.entries))
	for sym, e := range c.entries {
		entries[sym] = e
	}
	c.mu.RUnlock()

	snapshot := make([]domain.LivePriceUpdate, 0, len(entries))
	for sym, e := range entries {
		e.mu.Lock()
		if e.hasValue {
			snapshot = append(snapshot, domain.LivePriceUpdate{
				Symbol:      sym,
				Price:       e.price,
				TimestampMs: e.updatedMs,
				Source:      e.source,
			})
		}
		e.mu.Unlock()
	}
	return snapshot
}

// Len returns the number of symbols currently held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LastUpdateTime returns the epoch milliseconds of the most recent update
// across all symbols, or 0 when nothing was ever written.
func (c *Cache) LastUpdateTime() int64 {
	return c.lastUpdateMs.Load()
}

func (c *Cache) SubscribeUpdates(symbol string, handler port.UpdateHandler) string {
	return c.bus.subscribeUpdates(symbol, handler)
}

func (c *Cache) SubscribeSignificant(symbol string, handler port.SignificantChangeHandler) string {
	return c.bus.subscribeSignificant(symbol, handler)
}

func (c *Cache) Unsubscribe(id string) {
	c.bus.unsubscribe(id)
}

// entry returns the symbol's entry, creating it on first use. Entries are
// never deleted for the process lifetime.
func (c *Cache) entry(symbol string) *symbolEntry {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[symbol]; ok {
		return e
	}
	e = &symbolEntry{}
	c.entries[symbol] = e
	return e
}
