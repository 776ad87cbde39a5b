package port

import (
	"context"

	"github.com/shopspring/decimal"

	"marketfeed/internal/core/domain"
)

// TradeHandler receives individual trade events from the stream.
type TradeHandler func(symbol string, price decimal.Decimal)

// ExchangeGateway issues REST calls against the upstream exchange.
// Failures are returned as *domain.GatewayError so callers can pick the
// fallback policy; the gateway itself never retries geo-restrictions.
type ExchangeGateway interface {
	// Get all symbol prices in one call
	GetAllPrices(ctx context.Context) ([]domain.TickerPrice, error)

	// Get the current price for a single symbol
	GetPrice(ctx context.Context, symbol string) (domain.TickerPrice, error)

	// Get 24-hour statistics; empty symbol means all symbols
	Get24hrStats(ctx context.Context, symbol string) ([]domain.DailyStats, error)
}

// TradeStream manages the streaming trade subscription.
type TradeStream interface {
	// Start the subscription; starting with an already-subscribed symbol
	// set is a no-op
	Start(ctx context.Context, symbols []string, handler TradeHandler) error

	// Stop terminates all subscriptions and releases the connection
	Stop() error

	// IsConnected reports whether the underlying connection is up
	IsConnected() bool
}
