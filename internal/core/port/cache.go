package port

import (
	"github.com/shopspring/decimal"

	"marketfeed/internal/core/domain"
)

// UpdateHandler receives every price update for a subscription.
type UpdateHandler func(update domain.LivePriceUpdate)

// SignificantChangeHandler receives only updates that crossed the
// configured relative-change threshold.
type SignificantChangeHandler func(change domain.SignificantChange)

// LiveCache holds the latest known price per symbol and broadcasts
// updates to subscribers. It is the source of truth for the freshest
// known price and must be preferred over a REST round-trip.
type LiveCache interface {
	// Write the new price and publish the resulting events
	Update(symbol string, price decimal.Decimal, source domain.PriceSource)

	// Get the latest price for a symbol
	Get(symbol string) (decimal.Decimal, bool)

	// GetUpdate returns the full entry including its update timestamp
	GetUpdate(symbol string) (domain.LivePriceUpdate, bool)

	// Snapshot of all entries at call time
	Snapshot() []domain.LivePriceUpdate

	// Number of symbols currently held
	Len() int

	// Epoch milliseconds of the most recent update across all symbols
	LastUpdateTime() int64

	// Subscribe to updates for a symbol, or all symbols with SymbolAll.
	// Returns the subscription id used for Unsubscribe.
	SubscribeUpdates(symbol string, handler UpdateHandler) string
	SubscribeSignificant(symbol string, handler SignificantChangeHandler) string
	Unsubscribe(id string)
}

// SymbolAll subscribes to every symbol.
const SymbolAll = "*"
