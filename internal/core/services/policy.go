package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/ports"
)

const (
	EventBookingReserved  = "booking.reserved"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
)

// Policy holds the business knobs of the reservation engine.
type Policy struct {
	Location    *time.Location
	Cutoff      time.Duration
	SameDayHold time.Duration
	Fleet       domain.FleetDefaults
	BatchSize   int
}

func DefaultPolicy() Policy {
	return Policy{
		Location:    time.Local,
		Cutoff:      22 * time.Hour,
		SameDayHold: 2 * time.Minute,
		Fleet: domain.FleetDefaults{
			Count: 5,
			Prices: map[domain.Category]float64{
				domain.CategorySedan:     1500,
				domain.CategoryHatchback: 1200,
				domain.CategorySUV:       2000,
				domain.CategoryPrimeSUV:  2500,
			},
		},
		BatchSize: 500,
	}
}

type Deps struct {
	Store     ports.Store
	Scheduler ports.RestorationScheduler
	Cache     ports.AvailabilityCache
	Events    ports.EventPublisher
	Clock     ports.Clock
	Policy    Policy
	Logger    *zap.Logger
}

type engine struct {
	Deps
}

func newEngine(d Deps) engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Policy.Location == nil {
		d.Policy.Location = time.Local
	}
	if d.Policy.BatchSize <= 0 {
		d.Policy.BatchSize = 500
	}
	return engine{Deps: d}
}

func (e engine) now() time.Time {
	return e.Clock.Now().In(e.Policy.Location)
}

func (e engine) today() time.Time {
	return domain.CivilDate(e.now())
}

// afterLedgerWrite runs the best-effort side effects of a committed ledger
// change. Failures are logged; the ledger is already correct.
func (e engine) afterLedgerWrite(ctx context.Context, key domain.LedgerKey, event string, payload map[string]any) {
	if e.Cache != nil {
		if err := e.Cache.Invalidate(ctx, key.RouteID, key.TravelDate); err != nil {
			e.Logger.Warn("availability cache invalidation failed",
				zap.String("ledger_key", key.String()), zap.Error(err))
		}
	}
	if e.Events != nil {
		if err := e.Events.PublishJSON(ctx, event, payload); err != nil {
			e.Logger.Warn("event publish failed", zap.String("event", event), zap.Error(err))
		}
	}
}

func (e engine) unschedule(ctx context.Context, bookingID uuid.UUID) {
	if e.Scheduler == nil {
		return
	}
	if err := e.Scheduler.Unschedule(ctx, bookingID); err != nil {
		e.Logger.Warn("failed to drop restoration task",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}
}

func bookingPayload(b *domain.Booking) map[string]any {
	return map[string]any{
		"booking_id":  b.ID.String(),
		"route":       b.Route.String(),
		"vehicleType": string(b.Category),
		"travelDate":  b.TravelDate.Format(domain.DateLayout),
		"user_id":     b.UserID,
		"status":      string(b.Status),
	}
}
