// Package feed is the single entry point consumers use for price data.
// Queries resolve against the live cache first, then the exchange
// gateway, then the simulation engine, so the application never sees a
// hard failure from the feed under normal operation.
package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
)

type Feed struct {
	cache   port.LiveCache
	gateway port.ExchangeGateway
	stream  port.TradeStream
	sim     port.Simulator

	forceSim atomic.Bool
	now      func() time.Time
}

// Option customizes feed construction, used by tests.
type Option func(*Feed)

func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

func New(cache port.LiveCache, gateway port.ExchangeGateway, stream port.TradeStream, sim port.Simulator, opts ...Option) *Feed {
	f := &Feed{
		cache:   cache,
		gateway: gateway,
		stream:  stream,
		sim:     sim,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetPrice resolves a single symbol: cache hit first (at most one
// trade-tick stale, cheaper than a REST round-trip), then gateway, then
// simulation. The only possible error is domain.ErrInvalidSymbol.
func (f *Feed) GetPrice(ctx context.Context, symbol string) (domain.LivePriceUpdate, error) {
	normalized, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.LivePriceUpdate{}, err
	}

	if !f.forceSim.Load() {
		if update, ok := f.cache.GetUpdate(normalized); ok {
			return update, nil
		}

		price, err := f.gateway.GetPrice(ctx, normalized)
		if err == nil {
			f.sim.Seed(price.Symbol, price.Price)
			return domain.LivePriceUpdate{
				Symbol:      price.Symbol,
				Price:       price.Price,
				TimestampMs: f.now().UnixMilli(),
				Source:      domain.SourceStream,
			}, nil
		}
		f.logFallback("GetPrice", normalized, err)
	}

	return f.simulatedPrice(normalized), nil
}

// GetAllPrices resolves the whole catalog with a single gateway call.
// A non-empty live snapshot is preferred over the round-trip.
func (f *Feed) GetAllPrices(ctx context.Context) ([]domain.LivePriceUpdate, error) {
	if !f.forceSim.Load() {
		if snapshot := f.cache.Snapshot(); len(snapshot) > 0 {
			return snapshot, nil
		}

		prices, err := f.gateway.GetAllPrices(ctx)
		if err == nil {
			ts := f.now().UnixMilli()
			updates := make([]domain.LivePriceUpdate, 0, len(prices))
			for _, p := range prices {
				f.sim.Seed(p.Symbol, p.Price)
				updates = append(updates, domain.LivePriceUpdate{
					Symbol:      p.Symbol,
					Price:       p.Price,
					TimestampMs: ts,
					Source:      domain.SourceStream,
				})
			}
			return updates, nil
		}
		f.logFallback("GetAllPrices", "", err)
	}

	ts := f.now().UnixMilli()
	simulated := f.sim.AllPrices()
	updates := make([]domain.LivePriceUpdate, 0, len(simulated))
	for _, p := range simulated {
		updates = append(updates, domain.LivePriceUpdate{
			Symbol:      p.Symbol,
			Price:       p.Price,
			TimestampMs: ts,
			Source:      domain.SourceSimulated,
		})
	}
	return updates, nil
}

// Get24hrStats returns 24-hour statistics for one symbol, or for all
// known symbols when symbol is empty.
func (f *Feed) Get24hrStats(ctx context.Context, symbol string) ([]domain.DailyStats, error) {
	normalized := ""
	if symbol != "" {
		var err error
		normalized, err = domain.NormalizeSymbol(symbol)
		if err != nil {
			return nil, err
		}
	}

	if !f.forceSim.Load() {
		stats, err := f.gateway.Get24hrStats(ctx, normalized)
		if err == nil {
			for _, s := range stats {
				f.sim.Seed(s.Symbol, s.LastPrice)
			}
			return stats, nil
		}
		f.logFallback("Get24hrStats", normalized, err)
	}

	if normalized == "" {
		return f.sim.AllDailyStats(), nil
	}
	return []domain.DailyStats{f.sim.DailyStats(normalized)}, nil
}

// StartStream opens live WebSocket coverage for the given symbols; every
// trade event lands in the cache and fans out to subscribers.
func (f *Feed) StartStream(ctx context.Context, symbols []string) error {
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		n, err := domain.NormalizeSymbol(sym)
		if err != nil {
			return err
		}
		normalized = append(normalized, n)
	}

	return f.stream.Start(ctx, normalized, func(symbol string, price decimal.Decimal) {
		f.cache.Update(symbol, price, domain.SourceStream)
	})
}

func (f *Feed) StopStream() error {
	return f.stream.Stop()
}

func (f *Feed) SubscribeUpdates(symbol string, handler port.UpdateHandler) string {
	return f.cache.SubscribeUpdates(symbol, handler)
}

func (f *Feed) SubscribeSignificant(symbol string, handler port.SignificantChangeHandler) string {
	return f.cache.SubscribeSignificant(symbol, handler)
}

func (f *Feed) Unsubscribe(id string) {
	f.cache.Unsubscribe(id)
}

func (f *Feed) LastUpdateTime() int64 {
	return f.cache.LastUpdateTime()
}

// ForceSimulation makes every query resolve from the simulation engine,
// regardless of cache or gateway availability.
func (f *Feed) ForceSimulation(force bool) {
	was := f.forceSim.Swap(force)
	if was != force {
		slog.Info("Feed mode changed", "mode", f.Mode())
	}
}

func (f *Feed) Mode() string {
	if f.forceSim.Load() {
		return port.ModeSimulated
	}
	return port.ModeLive
}

func (f *Feed) simulatedPrice(symbol string) domain.LivePriceUpdate {
	return domain.LivePriceUpdate{
		Symbol:      symbol,
		Price:       f.sim.NextPrice(symbol),
		TimestampMs: f.now().UnixMilli(),
		Source:      domain.SourceSimulated,
	}
}

// logFallback records why a gateway call was abandoned. Classification
// decides log noise only; the fallback policy is the same simulated
// answer either way.
func (f *Feed) logFallback(op, symbol string, err error) {
	kind, _ := domain.FailureKindOf(err)
	slog.Warn("Gateway unavailable, serving simulated data",
		"op", op, "symbol", symbol, "classification", string(kind), "error", err)
}
