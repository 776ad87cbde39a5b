// File: internal/adapters/handler/http/v1/debug.go
package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"marketfeed/internal/core/port"
)

type DebugHandler struct {
	cache port.LiveCache
	sim   port.Simulator
}

func NewDebugHandler(cache port.LiveCache, sim port.Simulator) *DebugHandler {
	return &DebugHandler{
		cache: cache,
		sim:   sim,
	}
}

type DebugResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GET /debug/cache/snapshot - Dump every cached entry
func (h *DebugHandler) GetCacheSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeResponse(w, http.StatusServiceUnavailable, "Cache not available", nil)
		return
	}

	snapshot := h.cache.Snapshot()

	data := map[string]interface{}{
		"total_symbols":  len(snapshot),
		"last_update_ms": h.cache.LastUpdateTime(),
		"entries":        snapshot,
	}

	h.writeResponse(w, http.StatusOK, fmt.Sprintf("Found %d cached symbols", len(snapshot)), data)
}

// GET /debug/cache/symbol/{symbol} - Show the cached entry for one symbol
func (h *DebugHandler) GetSymbolData(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		h.writeResponse(w, http.StatusBadRequest, "Missing symbol parameter", nil)
		return
	}

	symbol = strings.ToUpper(symbol)

	if h.cache == nil {
		h.writeResponse(w, http.StatusServiceUnavailable, "Cache not available", nil)
		return
	}

	update, ok := h.cache.GetUpdate(symbol)
	if !ok {
		h.writeResponse(w, http.StatusNotFound, "No cached entry for symbol: "+symbol, nil)
		return
	}

	data := map[string]interface{}{
		"symbol": symbol,
		"entry":  update,
	}

	h.writeResponse(w, http.StatusOK, fmt.Sprintf("Data for symbol %s", symbol), data)
}

// GET /debug/simulation/{symbol} - Step the simulation for one symbol
func (h *DebugHandler) TestSimulation(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		h.writeResponse(w, http.StatusBadRequest, "Missing symbol parameter", nil)
		return
	}

	symbol = strings.ToUpper(symbol)

	if h.sim == nil {
		h.writeResponse(w, http.StatusServiceUnavailable, "Simulation engine not available", nil)
		return
	}

	results := make(map[string]interface{})
	results["next_price"] = h.sim.NextPrice(symbol)
	results["daily_stats"] = h.sim.DailyStats(symbol)

	data := map[string]interface{}{
		"symbol":  symbol,
		"results": results,
	}

	h.writeResponse(w, http.StatusOK, fmt.Sprintf("Simulation results for %s", symbol), data)
}

func (h *DebugHandler) writeResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := DebugResponse{
		Message: message,
		Data:    data,
	}

	if statusCode >= 400 {
		response.Error = message
		response.Message = ""
	}

	json.NewEncoder(w).Encode(response)
}
