package domain

// HealthStatus represents system health information
type HealthStatus struct {
	Status     string            `json:"status"`     // "healthy", "degraded", "unhealthy"
	Components map[string]string `json:"components"` // Component name -> status
	Timestamp  int64             `json:"timestamp"`
	Message    string            `json:"message,omitempty"`
}

// FeedStatus describes the current resolution mode of the price feed
type FeedStatus struct {
	CurrentMode     string `json:"current_mode"` // "live" or "simulated"
	StreamConnected bool   `json:"stream_connected"`
	CachedSymbols   int    `json:"cached_symbols"`
	LastUpdateMs    int64  `json:"last_update_ms"`
	Timestamp       int64  `json:"timestamp"`
}
