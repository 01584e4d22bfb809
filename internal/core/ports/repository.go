package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

type InventoryRepository interface {
	// GetCeiling returns domain.ErrRouteNotFound when the route or the
	// category row has not been seeded yet. Inside a transaction the ceiling
	// row stays share-locked until commit, so a concurrent UpsertCeiling waits.
	GetCeiling(ctx context.Context, route domain.Route, category domain.Category) (domain.Ceiling, error)
	ListCeilings(ctx context.Context, route domain.Route) ([]domain.Ceiling, error)
	UpsertCeiling(ctx context.Context, route domain.Route, category domain.Category, count int, price float64) (domain.Ceiling, error)
	// EnsureRoute creates the route and any missing category rows from
	// defaults. Existing rows are left untouched.
	EnsureRoute(ctx context.Context, route domain.Route, defaults domain.FleetDefaults) (uuid.UUID, error)
}

type LedgerRepository interface {
	GetCommitted(ctx context.Context, key domain.LedgerKey) (domain.AvailabilityEntry, error)
	// Lock creates the entry on first use and holds a row lock on it until
	// the surrounding transaction ends.
	Lock(ctx context.Context, key domain.LedgerKey) (domain.AvailabilityEntry, error)
	Increment(ctx context.Context, key domain.LedgerKey, restoreAt time.Time) error
	Decrement(ctx context.Context, key domain.LedgerKey) error
	ListForRouteDate(ctx context.Context, routeID uuid.UUID, date time.Time) ([]domain.AvailabilityEntry, error)
	MaxCommitted(ctx context.Context, routeID uuid.UUID, category domain.Category, from time.Time) (int, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	Delete(ctx context.Context, bookingID uuid.UUID) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListElapsed(ctx context.Context, today time.Time, limit int) ([]uuid.UUID, error)
	ListPending(ctx context.Context, now time.Time) ([]domain.PendingRestoration, error)
	ListConfirmedByUser(ctx context.Context, userID int64) ([]uuid.UUID, error)
	Search(ctx context.Context, userID int64, filter domain.BookingFilter) ([]domain.Booking, error)
}

type ArchiveRepository interface {
	Insert(ctx context.Context, archived domain.ArchivedBooking) error
	Get(ctx context.Context, bookingID uuid.UUID) (*domain.ArchivedBooking, error)
	DetachUser(ctx context.Context, userID int64) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.ArchivedBooking, error)
}

type UserRepository interface {
	FindByContact(ctx context.Context, contact string) (int64, error)
	Lock(ctx context.Context, userID int64) error
	Delete(ctx context.Context, userID int64) error
}

// Repositories groups the repositories bound to one connection or
// transaction.
type Repositories struct {
	Inventory InventoryRepository
	Ledger    LedgerRepository
	Bookings  BookingRepository
	Archive   ArchiveRepository
	Users     UserRepository
}

type Store interface {
	Repos() Repositories
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
