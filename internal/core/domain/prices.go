package domain

import (
	"github.com/shopspring/decimal"
)

// PriceSource identifies where a price came from.
type PriceSource string

const (
	SourceStream    PriceSource = "stream"
	SourceSimulated PriceSource = "simulated"
)

// TickerPrice is the current best-known trade price for a symbol.
// Constructed fresh on every query, never mutated.
type TickerPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// DailyStats holds aggregate figures over a trailing 24-hour window.
// All numeric fields stay decimal so no float rounding leaks into responses.
// OpenTime and CloseTime are epoch milliseconds spanning exactly 24 hours.
// HighPrice >= LastPrice >= LowPrice is expected but upstream data may
// violate it transiently, so it is not enforced here.
type DailyStats struct {
	Symbol             string          `json:"symbol"`
	PriceChange        decimal.Decimal `json:"priceChange"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
	OpenPrice          decimal.Decimal `json:"openPrice"`
	HighPrice          decimal.Decimal `json:"highPrice"`
	LowPrice           decimal.Decimal `json:"lowPrice"`
	LastPrice          decimal.Decimal `json:"lastPrice"`
	Volume             decimal.Decimal `json:"volume"`
	QuoteVolume        decimal.Decimal `json:"quoteVolume"`
	OpenTime           int64           `json:"openTime"`
	CloseTime          int64           `json:"closeTime"`
}

// LivePriceUpdate is emitted on every cache mutation.
type LivePriceUpdate struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	TimestampMs int64           `json:"timestamp_ms"`
	Source      PriceSource     `json:"source"`
}

// SignificantChange is emitted only when a price update crosses the
// configured relative-change threshold against the previous value.
type SignificantChange struct {
	LivePriceUpdate
	PreviousPrice decimal.Decimal `json:"previous_price"`
	ChangePercent float64         `json:"change_percent"`
}
