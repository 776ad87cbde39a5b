package health

import (
	"context"
	"time"

	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
)

type HealthService struct {
	feed    port.PriceFeed
	cache   port.LiveCache
	stream  port.TradeStream
	gateway port.ExchangeGateway
}

func NewHealthService(feed port.PriceFeed, cache port.LiveCache, stream port.TradeStream, gateway port.ExchangeGateway) port.HealthService {
	return &HealthService{
		feed:    feed,
		cache:   cache,
		stream:  stream,
		gateway: gateway,
	}
}

func (s *HealthService) GetSystemHealth(ctx context.Context) (*domain.HealthStatus, error) {
	status := &domain.HealthStatus{
		Components: make(map[string]string),
		Timestamp:  time.Now().Unix(),
	}

	allHealthy := true

	// Check the trade stream
	if s.stream != nil {
		if s.stream.IsConnected() {
			status.Components["stream"] = "healthy"
		} else if s.feed != nil && s.feed.Mode() == port.ModeSimulated {
			status.Components["stream"] = "bypassed"
		} else {
			status.Components["stream"] = "disconnected"
			allHealthy = false
		}
	} else {
		status.Components["stream"] = "unavailable"
		allHealthy = false
	}

	// Check the live cache
	if s.cache != nil {
		if s.cache.Len() > 0 {
			status.Components["cache"] = "healthy"
		} else {
			status.Components["cache"] = "empty"
		}
	} else {
		status.Components["cache"] = "unavailable"
		allHealthy = false
	}

	// Check the exchange gateway with a cheap single-symbol probe
	if s.gateway != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_, err := s.gateway.GetPrice(probeCtx, "BTCUSDT")
		cancel()
		if err == nil {
			status.Components["gateway"] = "healthy"
		} else if kind, ok := domain.FailureKindOf(err); ok {
			status.Components["gateway"] = string(kind)
			allHealthy = false
		} else {
			status.Components["gateway"] = "unhealthy"
			allHealthy = false
		}
	} else {
		status.Components["gateway"] = "unavailable"
		allHealthy = false
	}

	if allHealthy {
		status.Status = "healthy"
		status.Message = "All systems operational"
	} else if status.Components["gateway"] != "healthy" && status.Components["gateway"] != "unavailable" {
		// The feed keeps answering from the simulation when the
		// gateway is down, so a broken gateway only degrades
		status.Status = "degraded"
		status.Message = "Serving simulated data while the exchange is unreachable"
	} else {
		status.Status = "degraded"
		status.Message = "Some components are not fully operational"
	}

	return status, nil
}

func (s *HealthService) GetDetailedHealth(ctx context.Context) (*domain.HealthStatus, error) {
	status, err := s.GetSystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	if s.feed != nil {
		status.Components["mode"] = s.feed.Mode()

		last := s.feed.LastUpdateTime()
		if last == 0 {
			status.Components["last_update"] = "never"
		} else if time.Since(time.UnixMilli(last)) < time.Minute {
			status.Components["last_update"] = "fresh"
		} else {
			status.Components["last_update"] = "stale"
		}
	}

	if s.cache != nil {
		if s.cache.Len() > 0 {
			status.Components["cached_symbols"] = "healthy"
		} else {
			status.Components["cached_symbols"] = "empty"
		}
	}

	return status, nil
}
