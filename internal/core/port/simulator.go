package port

import (
	"github.com/shopspring/decimal"

	"marketfeed/internal/core/domain"
)

// Simulator produces deterministic, plausible price and stat data when
// the gateway is unusable. It is stateful: consecutive reads for the same
// symbol drift rather than jump.
type Simulator interface {
	// Seed records a real observation so future simulated output stays
	// close to it
	Seed(symbol string, price decimal.Decimal)

	// NextPrice advances the simulation for one symbol and returns the
	// new price. Unknown symbols get a stable hash-derived base.
	NextPrice(symbol string) decimal.Decimal

	// AllPrices advances the simulation for the whole catalog plus any
	// seeded symbols
	AllPrices() []domain.TickerPrice

	// DailyStats derives an internally consistent 24-hour stat record
	// around the current simulated price
	DailyStats(symbol string) domain.DailyStats

	// AllDailyStats returns stats for the catalog plus seeded symbols
	AllDailyStats() []domain.DailyStats
}
