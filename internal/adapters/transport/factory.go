// Package transport builds the outbound HTTP clients used to reach the
// upstream exchange, optionally routed through an authenticated HTTP or
// SOCKS5 proxy. No network call is made at construction time.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"marketfeed/internal/config"
	"marketfeed/internal/core/domain"
)

// Credential encoding strategies. Proxy providers disagree on conventions:
// some expect credentials embedded verbatim, others expect form-style
// encoding where spaces become '+' and reserved characters are
// percent-encoded.
const (
	EncodingNone      = "none"
	EncodingQuotePlus = "quote_plus"
)

// Supported proxy protocols.
const (
	ProtocolHTTP   = "http"
	ProtocolHTTPS  = "https"
	ProtocolSOCKS5 = "socks5"
)

// NewHTTPClient returns a ready-to-use client honoring the proxy
// configuration. A nil or disabled config produces a direct client. When
// proxy construction fails and FallbackToDirect is set, the failure is
// logged and a direct client is returned; otherwise a proxy_config
// gateway error is raised.
func NewHTTPClient(cfg *config.Proxy, timeout time.Duration) (*http.Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &http.Client{Timeout: timeout}, nil
	}

	transport, err := buildProxyTransport(cfg)
	if err != nil {
		if cfg.FallbackToDirect {
			slog.Warn("Proxy construction failed, falling back to direct connection", "error", err)
			return &http.Client{Timeout: timeout}, nil
		}
		return nil, domain.NewGatewayError(domain.FailureProxyConfig, "transport.NewHTTPClient", err)
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func buildProxyTransport(cfg *config.Proxy) (*http.Transport, error) {
	if cfg.Host == "" || cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid proxy address %q:%d", cfg.Host, cfg.Port)
	}

	switch cfg.Protocol {
	case ProtocolHTTP, ProtocolHTTPS:
		proxyURL, err := BuildProxyURL(cfg)
		if err != nil {
			return nil, err
		}
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil

	case ProtocolSOCKS5:
		var auth *proxy.Auth
		if cfg.Username != "" {
			auth = &proxy.Auth{
				User:     EncodeCredential(cfg.Username, cfg.CredentialEncoding),
				Password: EncodeCredential(cfg.Password, cfg.CredentialEncoding),
			}
		}
		addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
		dialer, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to build socks5 dialer: %w", err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer does not support context dialing")
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
				return ctxDialer.DialContext(ctx, network, address)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported proxy protocol %q", cfg.Protocol)
	}
}

// BuildProxyURL assembles the proxy URL, embedding credentials with the
// configured encoding strategy.
func BuildProxyURL(cfg *config.Proxy) (*url.URL, error) {
	raw := fmt.Sprintf("%s://", cfg.Protocol)
	if cfg.Username != "" {
		raw += fmt.Sprintf("%s:%s@",
			EncodeCredential(cfg.Username, cfg.CredentialEncoding),
			EncodeCredential(cfg.Password, cfg.CredentialEncoding))
	}
	raw += fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	proxyURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy url: %w", err)
	}
	return proxyURL, nil
}

// EncodeCredential applies the selected encoding to a single credential
// component. "none" performs no transformation.
func EncodeCredential(value, encoding string) string {
	switch encoding {
	case EncodingQuotePlus:
		return url.QueryEscape(value)
	default:
		return value
	}
}
