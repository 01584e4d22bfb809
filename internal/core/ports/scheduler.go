package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

type RestorationScheduler interface {
	Schedule(ctx context.Context, bookingID uuid.UUID, at time.Time) error
	Unschedule(ctx context.Context, bookingID uuid.UUID) error
}

// AvailabilityCache stores availability under a generation token. Invalidate
// and InvalidateRoute move the generation forward, so a value computed from
// ledger reads taken before an invalidation is stored under a stale token and
// never served.
type AvailabilityCache interface {
	Version(ctx context.Context, routeID uuid.UUID, date time.Time) (string, error)
	Get(ctx context.Context, routeID uuid.UUID, date time.Time, version string) ([]domain.Availability, bool, error)
	Set(ctx context.Context, routeID uuid.UUID, date time.Time, version string, items []domain.Availability) error
	Invalidate(ctx context.Context, routeID uuid.UUID, date time.Time) error
	InvalidateRoute(ctx context.Context, routeID uuid.UUID) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Clock interface {
	Now() time.Time
}
