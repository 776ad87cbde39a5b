package simulation

// catalogEntry holds the base price and volatility multiplier for one
// symbol. Volatility is lowest for the two most liquid reference assets
// and grows for smaller, less liquid ones.
type catalogEntry struct {
	BasePrice  float64
	Volatility float64
}

// defaultCatalog seeds simulation state for symbols never observed live.
var defaultCatalog = map[string]catalogEntry{
	"BTCUSDT":  {BasePrice: 96000.0, Volatility: 0.5},
	"ETHUSDT":  {BasePrice: 3300.0, Volatility: 0.6},
	"BNBUSDT":  {BasePrice: 650.0, Volatility: 1.0},
	"SOLUSDT":  {BasePrice: 210.0, Volatility: 1.2},
	"XRPUSDT":  {BasePrice: 2.2, Volatility: 1.5},
	"ADAUSDT":  {BasePrice: 0.95, Volatility: 1.8},
	"DOGEUSDT": {BasePrice: 0.32, Volatility: 2.0},
	"TONUSDT":  {BasePrice: 5.45, Volatility: 1.6},
	"DOTUSDT":  {BasePrice: 7.1, Volatility: 1.5},
	"LINKUSDT": {BasePrice: 22.0, Volatility: 1.4},
	"AVAXUSDT": {BasePrice: 38.0, Volatility: 1.6},
	"LTCUSDT":  {BasePrice: 105.0, Volatility: 1.2},
}

// unknownSymbolVolatility applies to hash-derived symbols absent from the
// catalog; treat them like small illiquid assets.
const unknownSymbolVolatility = 1.5

// CatalogSymbols returns the symbols with built-in base prices.
func CatalogSymbols() []string {
	symbols := make([]string, 0, len(defaultCatalog))
	for sym := range defaultCatalog {
		symbols = append(symbols, sym)
	}
	return symbols
}
