package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
)

type fakeFeed struct {
	streamCtx     context.Context
	streamSymbols []string
	streamStopped bool
	forceSim      bool
}

func (f *fakeFeed) GetPrice(ctx context.Context, symbol string) (domain.LivePriceUpdate, error) {
	return domain.LivePriceUpdate{}, nil
}

func (f *fakeFeed) GetAllPrices(ctx context.Context) ([]domain.LivePriceUpdate, error) {
	return nil, nil
}

func (f *fakeFeed) Get24hrStats(ctx context.Context, symbol string) ([]domain.DailyStats, error) {
	return nil, nil
}

func (f *fakeFeed) StartStream(ctx context.Context, symbols []string) error {
	f.streamCtx = ctx
	f.streamSymbols = symbols
	return nil
}

func (f *fakeFeed) StopStream() error {
	f.streamStopped = true
	return nil
}

func (f *fakeFeed) SubscribeUpdates(symbol string, handler port.UpdateHandler) string { return "" }

func (f *fakeFeed) SubscribeSignificant(symbol string, handler port.SignificantChangeHandler) string {
	return ""
}

func (f *fakeFeed) Unsubscribe(id string) {}

func (f *fakeFeed) LastUpdateTime() int64 { return 0 }

func (f *fakeFeed) ForceSimulation(force bool) { f.forceSim = force }

func (f *fakeFeed) Mode() string {
	if f.forceSim {
		return port.ModeSimulated
	}
	return port.ModeLive
}

func TestSwitchToLiveStreamOutlivesRequest(t *testing.T) {
	feed := &fakeFeed{forceSim: true}
	handler := NewModeHandler(feed, nil, nil, []string{"BTCUSDT", "ETHUSDT"}, context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mode/live", nil)
	handler.SwitchToLive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, feed.forceSim)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, feed.streamSymbols)

	// The subscription keeps running after the handler returns, so the
	// context handed to the stream must not be request-scoped
	require.NotNil(t, feed.streamCtx)
	assert.NoError(t, feed.streamCtx.Err())
	_, hasDeadline := feed.streamCtx.Deadline()
	assert.False(t, hasDeadline)
}

func TestSwitchToSimulated(t *testing.T) {
	feed := &fakeFeed{}
	handler := NewModeHandler(feed, nil, nil, []string{"BTCUSDT"}, context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mode/simulated", nil)
	handler.SwitchToSimulated(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, feed.forceSim)
	assert.True(t, feed.streamStopped)
}
