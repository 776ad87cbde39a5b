// Package binance implements the exchange gateway against the upstream
// Binance-compatible REST and WebSocket APIs.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"marketfeed/internal/core/domain"
)

const (
	pathTickerPrice = "/api/v3/ticker/price"
	pathTicker24hr  = "/api/v3/ticker/24hr"

	apiKeyHeader = "X-MBX-APIKEY"
)

// Seeder receives every successful REST observation so simulated output
// stays close to the last real price.
type Seeder interface {
	Seed(symbol string, price decimal.Decimal)
}

// Gateway issues REST calls through the transport factory's client and
// classifies failures. It holds no mutable state of its own; concurrent
// calls need no coordination.
type Gateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
	seeder  Seeder
}

// NewGateway creates a gateway bound to baseURL. seeder may be nil.
func NewGateway(client *http.Client, baseURL, apiKey string, seeder Seeder) *Gateway {
	return &Gateway{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		seeder:  seeder,
	}
}

// GetAllPrices returns the current price for every symbol the exchange
// trades.
func (g *Gateway) GetAllPrices(ctx context.Context) ([]domain.TickerPrice, error) {
	body, err := g.doGet(ctx, "GetAllPrices", pathTickerPrice, nil)
	if err != nil {
		return nil, err
	}

	var prices []domain.TickerPrice
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, domain.NewGatewayError(domain.FailureInvalidResponse, "GetAllPrices", err)
	}

	for _, p := range prices {
		g.seed(p.Symbol, p.Price)
	}
	return prices, nil
}

// GetPrice returns the current price for a single symbol.
func (g *Gateway) GetPrice(ctx context.Context, symbol string) (domain.TickerPrice, error) {
	query := url.Values{"symbol": {symbol}}
	body, err := g.doGet(ctx, "GetPrice", pathTickerPrice, query)
	if err != nil {
		return domain.TickerPrice{}, err
	}

	var price domain.TickerPrice
	if err := json.Unmarshal(body, &price); err != nil {
		return domain.TickerPrice{}, domain.NewGatewayError(domain.FailureInvalidResponse, "GetPrice", err)
	}
	if price.Symbol == "" {
		return domain.TickerPrice{}, domain.NewGatewayError(domain.FailureInvalidResponse, "GetPrice",
			fmt.Errorf("response missing symbol"))
	}

	g.seed(price.Symbol, price.Price)
	return price, nil
}

// Get24hrStats returns 24-hour statistics for one symbol, or for all
// symbols when symbol is empty.
func (g *Gateway) Get24hrStats(ctx context.Context, symbol string) ([]domain.DailyStats, error) {
	var query url.Values
	if symbol != "" {
		query = url.Values{"symbol": {symbol}}
	}
	body, err := g.doGet(ctx, "Get24hrStats", pathTicker24hr, query)
	if err != nil {
		return nil, err
	}

	var stats []domain.DailyStats
	if symbol != "" {
		var single domain.DailyStats
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, domain.NewGatewayError(domain.FailureInvalidResponse, "Get24hrStats", err)
		}
		stats = []domain.DailyStats{single}
	} else {
		if err := json.Unmarshal(body, &stats); err != nil {
			return nil, domain.NewGatewayError(domain.FailureInvalidResponse, "Get24hrStats", err)
		}
	}

	for _, s := range stats {
		g.seed(s.Symbol, s.LastPrice)
	}
	return stats, nil
}

func (g *Gateway) seed(symbol string, price decimal.Decimal) {
	if g.seeder != nil && symbol != "" {
		g.seeder.Seed(symbol, price)
	}
}

// doGet performs a GET with classification and a single bounded retry for
// transient network failures. Geo-restrictions and malformed responses
// are never retried.
func (g *Gateway) doGet(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	var body []byte

	attempt := func() error {
		b, err := g.fetch(ctx, op, path, query)
		if err != nil {
			if kind, ok := domain.FailureKindOf(err); ok && kind == domain.FailureTransientNetwork {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx)

	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return body, nil
}

func (g *Gateway) fetch(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	endpoint := g.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewGatewayError(domain.FailureInvalidResponse, op, err)
	}
	if g.apiKey != "" {
		req.Header.Set(apiKeyHeader, g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Timeouts, refused connections and DNS failures all surface here
		return nil, domain.NewGatewayError(domain.FailureTransientNetwork, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewGatewayError(domain.FailureTransientNetwork, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode, body)
		slog.Warn("Exchange request rejected", "op", op, "status", resp.StatusCode, "classification", kind)
		return nil, domain.NewGatewayError(kind, op,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	return body, nil
}

// classifyStatus maps an HTTP failure status onto the failure taxonomy.
// 451 is the canonical geo-restriction status; some frontends return 403
// with a "restricted location" body instead.
func classifyStatus(status int, body []byte) domain.FailureKind {
	switch {
	case status == http.StatusUnavailableForLegalReasons:
		return domain.FailureGeoRestriction
	case status == http.StatusForbidden && isRestrictedRegionBody(body):
		return domain.FailureGeoRestriction
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.FailureTransientNetwork
	default:
		return domain.FailureInvalidResponse
	}
}

func isRestrictedRegionBody(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "restricted location") ||
		strings.Contains(lower, "restricted region") ||
		strings.Contains(lower, "service unavailable from a")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
