package port

import (
	"context"

	"marketfeed/internal/core/domain"
)

// Feed modes reported by PriceFeed.Mode.
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

// PriceFeed is the single entry point consumers use. Queries resolve via
// live cache, then gateway, then simulation; a simulated answer is always
// available, so the only error callers can see is domain.ErrInvalidSymbol.
type PriceFeed interface {
	GetPrice(ctx context.Context, symbol string) (domain.LivePriceUpdate, error)
	GetAllPrices(ctx context.Context) ([]domain.LivePriceUpdate, error)
	Get24hrStats(ctx context.Context, symbol string) ([]domain.DailyStats, error)

	// Stream control for live WebSocket coverage
	StartStream(ctx context.Context, symbols []string) error
	StopStream() error

	// Push-style consumption
	SubscribeUpdates(symbol string, handler UpdateHandler) string
	SubscribeSignificant(symbol string, handler SignificantChangeHandler) string
	Unsubscribe(id string)

	// Staleness checks for consumers
	LastUpdateTime() int64

	// Force every query to resolve from the simulation engine
	ForceSimulation(force bool)
	Mode() string
}
