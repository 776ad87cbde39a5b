package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func GetConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err = json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.Exchange.BaseURL == "" {
		if cfg.Exchange.Testnet {
			cfg.Exchange.BaseURL = "https://testnet.binance.vision"
		} else {
			cfg.Exchange.BaseURL = "https://api.binance.com"
		}
	}
	if cfg.Exchange.WSURL == "" {
		if cfg.Exchange.Testnet {
			cfg.Exchange.WSURL = "wss://testnet.binance.vision"
		} else {
			cfg.Exchange.WSURL = "wss://stream.binance.com:9443"
		}
	}
	if cfg.Exchange.TimeoutSeconds == 0 {
		// Proxies are slower than direct connections, keep this generous
		cfg.Exchange.TimeoutSeconds = 12
	}
	if cfg.Proxy.Protocol == "" {
		cfg.Proxy.Protocol = "http"
	}
	if cfg.Proxy.CredentialEncoding == "" {
		cfg.Proxy.CredentialEncoding = "none"
	}
	if cfg.Cache.SignificantChangeThreshold == 0 {
		cfg.Cache.SignificantChangeThreshold = 0.01
	}
	if cfg.Simulation.TrendAmplitude == 0 {
		cfg.Simulation.TrendAmplitude = 0.02
	}
	if cfg.Simulation.ReversionIntervalMinutes == 0 {
		cfg.Simulation.ReversionIntervalMinutes = 30
	}
	if cfg.Simulation.ReversionWeight == 0 {
		cfg.Simulation.ReversionWeight = 0.1
	}
	if cfg.Simulation.StatsSwingPercent == 0 {
		cfg.Simulation.StatsSwingPercent = 0.05
	}
	if len(cfg.Stream.Symbols) == 0 {
		cfg.Stream.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "DOGEUSDT", "TONUSDT"}
	}
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.App.Port = p
		}
	}

	// Exchange environment variables
	if baseURL := os.Getenv("EXCHANGE_BASE_URL"); baseURL != "" {
		cfg.Exchange.BaseURL = baseURL
	}
	if wsURL := os.Getenv("EXCHANGE_WS_URL"); wsURL != "" {
		cfg.Exchange.WSURL = wsURL
	}
	if testnet := os.Getenv("EXCHANGE_TESTNET"); testnet != "" {
		cfg.Exchange.Testnet = parseBool(testnet)
	}
	if apiKey := os.Getenv("EXCHANGE_API_KEY"); apiKey != "" {
		cfg.Exchange.APIKey = apiKey
	}
	if apiSecret := os.Getenv("EXCHANGE_API_SECRET"); apiSecret != "" {
		cfg.Exchange.APISecret = apiSecret
	}
	if timeout := os.Getenv("EXCHANGE_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			cfg.Exchange.TimeoutSeconds = t
		}
	}

	// Proxy environment variables
	if enabled := os.Getenv("PROXY_ENABLED"); enabled != "" {
		cfg.Proxy.Enabled = parseBool(enabled)
	}
	if protocol := os.Getenv("PROXY_PROTOCOL"); protocol != "" {
		cfg.Proxy.Protocol = protocol
	}
	if host := os.Getenv("PROXY_HOST"); host != "" {
		cfg.Proxy.Host = host
	}
	if port := os.Getenv("PROXY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Proxy.Port = p
		}
	}
	if username := os.Getenv("PROXY_USERNAME"); username != "" {
		cfg.Proxy.Username = username
	}
	if password := os.Getenv("PROXY_PASSWORD"); password != "" {
		cfg.Proxy.Password = password
	}
	if encoding := os.Getenv("PROXY_CREDENTIAL_ENCODING"); encoding != "" {
		cfg.Proxy.CredentialEncoding = encoding
	}
	if fallback := os.Getenv("PROXY_FALLBACK_TO_DIRECT"); fallback != "" {
		cfg.Proxy.FallbackToDirect = parseBool(fallback)
	}

	// Stream environment variables
	if symbols := os.Getenv("STREAM_SYMBOLS"); symbols != "" {
		parts := strings.Split(symbols, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		if len(cleaned) > 0 {
			cfg.Stream.Symbols = cleaned
		}
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	return err == nil && b
}

type Config struct {
	App        App        `json:"app"`
	Exchange   Exchange   `json:"exchange"`
	Proxy      Proxy      `json:"proxy"`
	Cache      Cache      `json:"cache"`
	Simulation Simulation `json:"simulation"`
	Stream     Stream     `json:"stream"`
}

type App struct {
	Port int `json:"port"`
}

type Exchange struct {
	BaseURL        string `json:"base_url"`
	WSURL          string `json:"ws_url"`
	Testnet        bool   `json:"testnet"`
	APIKey         string `json:"api_key"`
	APISecret      string `json:"api_secret"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Proxy describes an optional authenticated HTTP or SOCKS5 proxy for all
// outbound exchange traffic. CredentialEncoding is "none" or "quote_plus";
// proxy providers disagree on which convention they expect.
type Proxy struct {
	Enabled            bool   `json:"enabled"`
	Protocol           string `json:"protocol"` // "http", "https" or "socks5"
	Host               string `json:"host"`
	Port               int    `json:"port"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	CredentialEncoding string `json:"credential_encoding"`
	FallbackToDirect   bool   `json:"fallback_to_direct"`
}

type Cache struct {
	SignificantChangeThreshold float64 `json:"significant_change_threshold"`
}

// Simulation tunables. The defaults are empirical; they are configuration
// rather than constants so deployments can retune without a rebuild.
type Simulation struct {
	TrendAmplitude           float64 `json:"trend_amplitude"`
	ReversionIntervalMinutes int     `json:"reversion_interval_minutes"`
	ReversionWeight          float64 `json:"reversion_weight"`
	StatsSwingPercent        float64 `json:"stats_swing_percent"`
}

type Stream struct {
	Symbols []string `json:"symbols"`
}
