package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketfeed/internal/core/domain"
)

type recordingSeeder struct {
	mu    sync.Mutex
	seeds map[string]decimal.Decimal
}

func newRecordingSeeder() *recordingSeeder {
	return &recordingSeeder{seeds: make(map[string]decimal.Decimal)}
}

func (r *recordingSeeder) Seed(symbol string, price decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeds[symbol] = price
}

func (r *recordingSeeder) get(symbol string) (decimal.Decimal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.seeds[symbol]
	return p, ok
}

func TestGetAllPrices(t *testing.T) {
	seeder := newRecordingSeeder()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		w.Write([]byte(`[{"symbol":"BTCUSDT","price":"96123.45"},{"symbol":"ETHUSDT","price":"3310.10"}]`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", seeder)
	prices, err := gw.GetAllPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "BTCUSDT", prices[0].Symbol)
	assert.True(t, prices[0].Price.Equal(decimal.RequireFromString("96123.45")))

	// Every successful observation reseeds the simulation
	seeded, ok := seeder.get("ETHUSDT")
	require.True(t, ok)
	assert.True(t, seeded.Equal(decimal.RequireFromString("3310.10")))
}

func TestGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"96500.00"}`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	price, err := gw.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", price.Symbol)
	assert.True(t, price.Price.Equal(decimal.RequireFromString("96500.00")))
}

func TestGetPriceSendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"1.0"}`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "test-key", nil)
	_, err := gw.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
}

func TestGet24hrStatsSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"symbol":"BTCUSDT","priceChange":"-500.10","priceChangePercent":"-0.52",
			"openPrice":"96500.10","highPrice":"97000.00","lowPrice":"95500.00",
			"lastPrice":"96000.00","volume":"12345.6","quoteVolume":"1187000000.0",
			"openTime":1700000000000,"closeTime":1700086400000}`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	stats, err := gw.Get24hrStats(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "BTCUSDT", stats[0].Symbol)
	assert.True(t, stats[0].LastPrice.Equal(decimal.RequireFromString("96000.00")))
	assert.Equal(t, int64(1700000000000), stats[0].OpenTime)
	assert.Equal(t, int64(1700086400000), stats[0].CloseTime)
}

func TestGet24hrStatsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("symbol"))
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"96000.00"},
			{"symbol":"ETHUSDT","lastPrice":"3300.00"}]`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	stats, err := gw.Get24hrStats(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestGeoRestrictionNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
		w.Write([]byte(`{"code":0,"msg":"Service unavailable from a restricted location"}`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	_, err := gw.GetAllPrices(context.Background())
	require.Error(t, err)

	kind, ok := domain.FailureKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureGeoRestriction, kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForbiddenRestrictedBodyClassifiedAsGeo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`access from a restricted location is not allowed`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	_, err := gw.GetPrice(context.Background(), "BTCUSDT")

	kind, ok := domain.FailureKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureGeoRestriction, kind)
}

func TestTransientFailureRetriedOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"96000.00"}`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	price, err := gw.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", price.Symbol)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTransientFailureGivesUpAfterRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	_, err := gw.GetAllPrices(context.Background())
	require.Error(t, err)

	kind, ok := domain.FailureKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureTransientNetwork, kind)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	gw := NewGateway(server.Client(), server.URL, "", nil)
	_, err := gw.GetAllPrices(context.Background())
	require.Error(t, err)

	kind, ok := domain.FailureKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureInvalidResponse, kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTimeoutClassifiedAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	gw := NewGateway(client, server.URL, "", nil)
	_, err := gw.GetAllPrices(context.Background())
	require.Error(t, err)

	kind, ok := domain.FailureKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.FailureTransientNetwork, kind)
}
