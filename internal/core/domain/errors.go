package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a gateway operation failed, so the feed
// facade can pick the right fallback policy in one place.
type FailureKind string

const (
	// FailureGeoRestriction: the upstream rejected the request based on
	// network origin. Expected to recur until the deployment moves, so
	// it must never be retried in a tight loop.
	FailureGeoRestriction FailureKind = "geo_restriction"

	// FailureTransientNetwork: timeout, connection refused or DNS failure.
	// Safe to retry once with backoff before falling back.
	FailureTransientNetwork FailureKind = "transient_network"

	// FailureInvalidResponse: the upstream answered with a body we cannot
	// parse. A data-contract violation, fallback-worthy immediately.
	FailureInvalidResponse FailureKind = "invalid_response"

	// FailureProxyConfig: proxy client construction failed. Only possible
	// at construction time.
	FailureProxyConfig FailureKind = "proxy_config"
)

// GatewayError is the tagged failure result returned by the exchange
// gateway instead of raw transport errors.
type GatewayError struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError wraps err with a failure classification.
func NewGatewayError(kind FailureKind, op string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Op: op, Err: err}
}

// FailureKindOf extracts the classification from err, or ok=false when err
// is not a gateway failure.
func FailureKindOf(err error) (FailureKind, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return "", false
}

// ErrInvalidSymbol marks a symbol that cannot be normalized into a valid
// trading pair. This is the only error the feed surfaces to callers.
var ErrInvalidSymbol = errors.New("invalid symbol format")
