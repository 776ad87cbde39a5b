// File: internal/adapters/handler/http/v1/endpoints.go
package v1

import (
	"net/http"

	"marketfeed/internal/core/port"
)

// SetMarketRoutes sets up all market data API routes
func SetMarketRoutes(router *http.ServeMux, priceHandler *PriceHandler, healthHandler *HealthHandler, modeHandler *ModeHandler) {
	// Market Data API Routes
	setPriceRoutes(priceHandler, router)

	// Data Mode API Routes
	setModeRoutes(modeHandler, router)

	// System Health Routes
	setHealthRoutes(healthHandler, router)
}

// SetDebugRoutes sets up debug routes (call this separately for debugging)
func SetDebugRoutes(router *http.ServeMux, cache port.LiveCache, sim port.Simulator) {
	debugHandler := NewDebugHandler(cache, sim)

	router.HandleFunc("GET /debug/cache/snapshot", debugHandler.GetCacheSnapshot)
	router.HandleFunc("GET /debug/cache/symbol/{symbol}", debugHandler.GetSymbolData)
	router.HandleFunc("GET /debug/simulation/{symbol}", debugHandler.TestSimulation)
}

// setPriceRoutes sets up all price-related endpoints
func setPriceRoutes(handler *PriceHandler, router *http.ServeMux) {
	// Latest Price Endpoints
	router.HandleFunc("GET /prices", handler.GetAllPrices)
	router.HandleFunc("GET /prices/latest/{symbol}", handler.GetLatestPrice)

	// 24-hour Statistics Endpoints
	router.HandleFunc("GET /stats/24hr", handler.GetAll24hrStats)
	router.HandleFunc("GET /stats/24hr/{symbol}", handler.Get24hrStats)
}

// setModeRoutes sets up data mode switching endpoints
func setModeRoutes(handler *ModeHandler, router *http.ServeMux) {
	router.HandleFunc("POST /mode/simulated", handler.SwitchToSimulated)
	router.HandleFunc("POST /mode/live", handler.SwitchToLive)
	router.HandleFunc("GET /mode/current", handler.GetCurrentMode) // Extra: get current mode
}

// setHealthRoutes sets up system health endpoints
func setHealthRoutes(handler *HealthHandler, router *http.ServeMux) {
	router.HandleFunc("GET /health", handler.GetSystemHealth)
	router.HandleFunc("GET /health/detailed", handler.GetDetailedHealth) // Extra: detailed health check
}
