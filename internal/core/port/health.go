package port

import (
	"context"

	"marketfeed/internal/core/domain"
)

type HealthService interface {
	GetSystemHealth(ctx context.Context) (*domain.HealthStatus, error)
	GetDetailedHealth(ctx context.Context) (*domain.HealthStatus, error)
}
