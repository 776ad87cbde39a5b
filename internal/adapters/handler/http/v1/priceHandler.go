package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"

	"github.com/shopspring/decimal"
)

type PriceHandler struct {
	feed port.PriceFeed
}

func NewPriceHandler(
	feed port.PriceFeed,
) *PriceHandler {
	return &PriceHandler{
		feed: feed,
	}
}

// Response structures
type LatestPriceResponse struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetAllPrices handles GET /prices
func (h *PriceHandler) GetAllPrices(w http.ResponseWriter, r *http.Request) {
	updates, err := h.feed.GetAllPrices(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "failed to get prices: "+err.Error())
		return
	}

	response := make([]LatestPriceResponse, 0, len(updates))
	for _, u := range updates {
		response = append(response, LatestPriceResponse{
			Symbol:    u.Symbol,
			Price:     u.Price,
			Timestamp: u.TimestampMs,
			Source:    string(u.Source),
		})
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetLatestPrice handles GET /prices/latest/{symbol}
func (h *PriceHandler) GetLatestPrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing symbol parameter")
		return
	}

	update, err := h.feed.GetPrice(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSymbol) {
			h.writeErrorResponse(w, http.StatusBadRequest, "invalid symbol: "+symbol)
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "failed to get latest price: "+err.Error())
		return
	}

	response := LatestPriceResponse{
		Symbol:    update.Symbol,
		Price:     update.Price,
		Timestamp: update.TimestampMs,
		Source:    string(update.Source),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetAll24hrStats handles GET /stats/24hr
func (h *PriceHandler) GetAll24hrStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feed.Get24hrStats(r.Context(), "")
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "failed to get statistics: "+err.Error())
		return
	}

	h.writeJSONResponse(w, http.StatusOK, stats)
}

// Get24hrStats handles GET /stats/24hr/{symbol}
func (h *PriceHandler) Get24hrStats(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing symbol parameter")
		return
	}

	stats, err := h.feed.Get24hrStats(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSymbol) {
			h.writeErrorResponse(w, http.StatusBadRequest, "invalid symbol: "+symbol)
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "failed to get statistics: "+err.Error())
		return
	}

	if len(stats) == 0 {
		h.writeErrorResponse(w, http.StatusNotFound, "no statistics found for symbol: "+symbol)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, stats[0])
}

// Helper methods

func (h *PriceHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// If we can't encode the response, send a simple error message
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal_error","message":"failed to encode response"}`))
	}
}

func (h *PriceHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	errorType := "bad_request"
	switch statusCode {
	case http.StatusNotFound:
		errorType = "not_found"
	case http.StatusInternalServerError:
		errorType = "internal_error"
	}

	response := ErrorResponse{
		Error:   errorType,
		Message: message,
	}

	h.writeJSONResponse(w, statusCode, response)
}
