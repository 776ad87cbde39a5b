// File: internal/adapters/handler/http/v1/modeHandler.go
package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
)

type ModeHandler struct {
	feed          port.PriceFeed
	cache         port.LiveCache
	stream        port.TradeStream
	streamSymbols []string
	ctx           context.Context
}

func NewModeHandler(
	feed port.PriceFeed,
	cache port.LiveCache,
	stream port.TradeStream,
	streamSymbols []string,
	ctx context.Context,
) *ModeHandler {
	return &ModeHandler{
		feed:          feed,
		cache:         cache,
		stream:        stream,
		streamSymbols: streamSymbols,
		ctx:           ctx,
	}
}

type ModeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SwitchToSimulated handles POST /mode/simulated
func (h *ModeHandler) SwitchToSimulated(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "price feed not available")
		return
	}

	h.feed.ForceSimulation(true)
	if err := h.feed.StopStream(); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "failed to stop trade stream: "+err.Error())
		return
	}

	response := ModeResponse{
		Status:  "success",
		Message: "switched to simulated mode successfully",
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// SwitchToLive handles POST /mode/live
func (h *ModeHandler) SwitchToLive(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "price feed not available")
		return
	}

	h.feed.ForceSimulation(false)

	// The stream outlives this request, so it runs on the app context
	if err := h.feed.StartStream(h.ctx, h.streamSymbols); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "failed to start trade stream: "+err.Error())
		return
	}

	response := ModeResponse{
		Status:  "success",
		Message: "switched to live mode successfully",
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetCurrentMode handles GET /mode/current
func (h *ModeHandler) GetCurrentMode(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "price feed not available")
		return
	}

	var cachedSymbols int
	if h.cache != nil {
		cachedSymbols = h.cache.Len()
	}

	var streamConnected bool
	if h.stream != nil {
		streamConnected = h.stream.IsConnected()
	}

	response := domain.FeedStatus{
		CurrentMode:     h.feed.Mode(),
		StreamConnected: streamConnected,
		CachedSymbols:   cachedSymbols,
		LastUpdateMs:    h.feed.LastUpdateTime(),
		Timestamp:       time.Now().Unix(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// Helper methods
func (h *ModeHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// If we can't encode the response, send a simple error message
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal_error","message":"failed to encode response"}`))
	}
}

func (h *ModeHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	errorType := "internal_error"
	switch statusCode {
	case http.StatusServiceUnavailable:
		errorType = "service_unavailable"
	case http.StatusBadRequest:
		errorType = "bad_request"
	}

	response := map[string]interface{}{
		"error":     errorType,
		"message":   message,
		"timestamp": time.Now().Unix(),
	}

	h.writeJSONResponse(w, statusCode, response)
}
