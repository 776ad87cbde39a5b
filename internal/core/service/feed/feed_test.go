package feed

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketfeed/internal/config"
	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
	"marketfeed/internal/core/service/livecache"
	"marketfeed/internal/core/service/simulation"
)

type fakeGateway struct {
	priceCalls atomic.Int32
	allCalls   atomic.Int32
	statsCalls atomic.Int32

	price domain.TickerPrice
	all   []domain.TickerPrice
	stats []domain.DailyStats
	err   error
}

func (g *fakeGateway) GetPrice(ctx context.Context, symbol string) (domain.TickerPrice, error) {
	g.priceCalls.Add(1)
	if g.err != nil {
		return domain.TickerPrice{}, g.err
	}
	return g.price, nil
}

func (g *fakeGateway) GetAllPrices(ctx context.Context) ([]domain.TickerPrice, error) {
	g.allCalls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return g.all, nil
}

func (g *fakeGateway) Get24hrStats(ctx context.Context, symbol string) ([]domain.DailyStats, error) {
	g.statsCalls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return g.stats, nil
}

type fakeStream struct {
	started atomic.Bool
	symbols []string
	handler port.TradeHandler
}

func (s *fakeStream) Start(ctx context.Context, symbols []string, handler port.TradeHandler) error {
	s.started.Store(true)
	s.symbols = symbols
	s.handler = handler
	return nil
}

func (s *fakeStream) Stop() error {
	s.started.Store(false)
	return nil
}

func (s *fakeStream) IsConnected() bool {
	return s.started.Load()
}

func newTestFeed(gw *fakeGateway, stream *fakeStream) (*Feed, *livecache.Cache, *simulation.Engine) {
	cache := livecache.New(0.01)
	clock := func() time.Time { return time.Date(2026, 8, 31, 10, 15, 0, 0, time.UTC) }
	sim := simulation.New(config.Simulation{
		TrendAmplitude:           0.02,
		ReversionIntervalMinutes: 30,
		ReversionWeight:          0.1,
		StatsSwingPercent:        0.05,
	}, simulation.WithClock(clock), simulation.WithRandSource(rand.NewSource(1)), simulation.WithSnapshot(cache.Snapshot))

	return New(cache, gw, stream, sim, WithClock(clock)), cache, sim
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGetPriceCacheHitSkipsGateway(t *testing.T) {
	gw := &fakeGateway{}
	f, cache, _ := newTestFeed(gw, &fakeStream{})

	cache.Update("BTCUSDT", d("96000"), domain.SourceStream)

	update, err := f.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, update.Price.Equal(d("96000")))
	assert.Equal(t, domain.SourceStream, update.Source)
	assert.Equal(t, int32(0), gw.priceCalls.Load())
}

func TestGetPriceFromGatewaySeedsSimulation(t *testing.T) {
	gw := &fakeGateway{price: domain.TickerPrice{Symbol: "BTCUSDT", Price: d("50000")}}
	f, _, sim := newTestFeed(gw, &fakeStream{})

	update, err := f.GetPrice(context.Background(), "btc-usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", update.Symbol)
	assert.True(t, update.Price.Equal(d("50000")))
	assert.Equal(t, int32(1), gw.priceCalls.Load())

	// The simulation seed moved to the observed value
	simulated, _ := sim.NextPrice("BTCUSDT").Float64()
	assert.InDelta(t, 50000, simulated, 50000*0.05)
}

func TestGetPriceFallsBackToSimulation(t *testing.T) {
	gw := &fakeGateway{err: domain.NewGatewayError(domain.FailureGeoRestriction, "GetPrice", nil)}
	f, _, _ := newTestFeed(gw, &fakeStream{})

	update, err := f.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceSimulated, update.Source)
	assert.True(t, update.Price.IsPositive())
}

func TestGetPriceInvalidSymbol(t *testing.T) {
	f, _, _ := newTestFeed(&fakeGateway{}, &fakeStream{})

	_, err := f.GetPrice(context.Background(), "!!")
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestScenarioAStreamSupersedesRest(t *testing.T) {
	gw := &fakeGateway{price: domain.TickerPrice{Symbol: "BTCUSDT", Price: d("96000")}}
	stream := &fakeStream{}
	f, _, _ := newTestFeed(gw, stream)

	// Gateway reachable: REST value comes back
	update, err := f.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, update.Price.Equal(d("96000")))

	// A stream trade at a different price supersedes it via the cache
	require.NoError(t, f.StartStream(context.Background(), []string{"BTCUSDT"}))
	require.NotNil(t, stream.handler)
	stream.handler("BTCUSDT", d("96150"))

	update, err = f.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, update.Price.Equal(d("96150")))
	assert.Equal(t, domain.SourceStream, update.Source)
	assert.Equal(t, int32(1), gw.priceCalls.Load())
}

func TestScenarioBGeoRestrictedBatch(t *testing.T) {
	gw := &fakeGateway{err: domain.NewGatewayError(domain.FailureGeoRestriction, "GetAllPrices", nil)}
	f, _, _ := newTestFeed(gw, &fakeStream{})

	first, err := f.GetAllPrices(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first)

	prices := make(map[string]float64, len(first))
	for _, u := range first {
		assert.Equal(t, domain.SourceSimulated, u.Source)
		assert.True(t, u.Price.IsPositive())
		p, _ := u.Price.Float64()
		prices[u.Symbol] = p
	}

	// Repeated call in the same minute bucket stays within the
	// per-symbol volatility band
	second, err := f.GetAllPrices(context.Background())
	require.NoError(t, err)
	for _, u := range second {
		prev, ok := prices[u.Symbol]
		require.True(t, ok)
		cur, _ := u.Price.Float64()
		assert.InDelta(t, prev, cur, prev*0.06, "symbol %s", u.Symbol)
	}
}

func TestScenarioCUnknownSymbol(t *testing.T) {
	gw := &fakeGateway{err: domain.NewGatewayError(domain.FailureTransientNetwork, "GetPrice", nil)}
	f, _, _ := newTestFeed(gw, &fakeStream{})

	first, err := f.GetPrice(context.Background(), "ZZZUSDT")
	require.NoError(t, err)
	require.True(t, first.Price.IsPositive())

	second, err := f.GetPrice(context.Background(), "ZZZUSDT")
	require.NoError(t, err)

	p1, _ := first.Price.Float64()
	p2, _ := second.Price.Float64()
	assert.InDelta(t, p1, p2, p1*0.05)
}

func TestGetAllPricesPrefersSnapshot(t *testing.T) {
	gw := &fakeGateway{all: []domain.TickerPrice{{Symbol: "BTCUSDT", Price: d("1")}}}
	f, cache, _ := newTestFeed(gw, &fakeStream{})

	cache.Update("ETHUSDT", d("3300"), domain.SourceStream)

	updates, err := f.GetAllPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "ETHUSDT", updates[0].Symbol)
	assert.Equal(t, int32(0), gw.allCalls.Load())
}

func TestGet24hrStatsGatewayAndFallback(t *testing.T) {
	gw := &fakeGateway{stats: []domain.DailyStats{{Symbol: "BTCUSDT", LastPrice: d("96000")}}}
	f, _, _ := newTestFeed(gw, &fakeStream{})

	stats, err := f.Get24hrStats(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "BTCUSDT", stats[0].Symbol)

	// Gateway down: simulated stats, never an error
	gw.err = domain.NewGatewayError(domain.FailureInvalidResponse, "Get24hrStats", nil)
	stats, err = f.Get24hrStats(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.True(t, stats[0].LastPrice.IsPositive())

	all, err := f.Get24hrStats(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestForceSimulationMode(t *testing.T) {
	gw := &fakeGateway{price: domain.TickerPrice{Symbol: "BTCUSDT", Price: d("96000")}}
	f, cache, _ := newTestFeed(gw, &fakeStream{})
	cache.Update("BTCUSDT", d("96000"), domain.SourceStream)

	assert.Equal(t, port.ModeLive, f.Mode())

	f.ForceSimulation(true)
	assert.Equal(t, port.ModeSimulated, f.Mode())

	// Even with a cache entry and a healthy gateway, answers are simulated
	update, err := f.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceSimulated, update.Source)
	assert.Equal(t, int32(0), gw.priceCalls.Load())

	f.ForceSimulation(false)
	assert.Equal(t, port.ModeLive, f.Mode())
}

func TestStartStreamNormalizesSymbols(t *testing.T) {
	stream := &fakeStream{}
	f, _, _ := newTestFeed(&fakeGateway{}, stream)

	require.NoError(t, f.StartStream(context.Background(), []string{"btc-usdt", "ethusdt"}))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, stream.symbols)

	assert.ErrorIs(t, f.StartStream(context.Background(), []string{"??"}), domain.ErrInvalidSymbol)

	require.NoError(t, f.StopStream())
	assert.False(t, stream.IsConnected())
}
