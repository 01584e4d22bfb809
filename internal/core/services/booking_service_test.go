package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/ports/mocks"
	"github.com/srgjo27/taxi_availability/internal/core/services"
	"github.com/srgjo27/taxi_availability/internal/platform/clock"
)

const (
	mobile   = "9800000001"
	today    = "2026-11-02"
	tomorrow = "2026-11-03"
)

var morning = time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memStore
	clock     *clock.Fixed
	deps      services.Deps
	booking   *services.BookingService
	restore   *services.RestorationService
	lifecycle *services.LifecycleService
}

func newFixture(t *testing.T, configure ...func(d *services.Deps)) *fixture {
	t.Helper()

	store := newMemStore()
	store.addUser(1, mobile)
	clk := clock.NewFixed(morning)

	policy := services.DefaultPolicy()
	policy.Location = time.UTC

	d := services.Deps{Store: store, Clock: clk, Policy: policy}
	for _, fn := range configure {
		fn(&d)
	}

	return &fixture{
		store:     store,
		clock:     clk,
		deps:      d,
		booking:   services.NewBookingService(d),
		restore:   services.NewRestorationService(d),
		lifecycle: services.NewLifecycleService(d),
	}
}

func reserveReq(date string, vehicle string) services.ReserveRequest {
	return services.ReserveRequest{
		PickupLocation:     "Mumbai",
		DropLocation:       "Pune",
		VehicleType:        vehicle,
		TravelDate:         date,
		NumberOfPassengers: 2,
		UserDetails:        services.UserDetails{Mobile: mobile},
	}
}

func (f *fixture) setCeiling(t *testing.T, vehicle string, count int) {
	t.Helper()
	_, err := f.booking.UpdateInventory(context.Background(), services.InventoryUpdate{
		PickupLocation: "Mumbai",
		DropLocation:   "Pune",
		VehicleType:    vehicle,
		Available:      count,
		Price:          1500,
	})
	require.NoError(t, err)
}

func (f *fixture) available(t *testing.T, date string, category domain.Category) int {
	t.Helper()
	items, err := f.booking.CheckAvailability(context.Background(), "Mumbai", "Pune", date)
	require.NoError(t, err)
	for _, it := range items {
		if it.Category == category {
			return it.AvailableCount
		}
	}
	t.Fatalf("category %s missing from availability", category)
	return 0
}

func TestReserve_Success(t *testing.T) {
	ctx := context.Background()
	scheduler := mocks.NewRestorationScheduler(t)
	cache := mocks.NewAvailabilityCache(t)
	events := mocks.NewEventPublisher(t)

	f := newFixture(t, func(d *services.Deps) {
		d.Scheduler = scheduler
		d.Cache = cache
		d.Events = events
	})

	endOfDay := time.Date(2026, 11, 3, 23, 59, 59, 0, time.UTC)
	travelDate := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)

	scheduler.On("Schedule", ctx, mock.AnythingOfType("uuid.UUID"), endOfDay).Return(nil)
	cache.On("Invalidate", ctx, mock.AnythingOfType("uuid.UUID"), travelDate).Return(nil)
	events.On("PublishJSON", ctx, services.EventBookingReserved, mock.Anything).Return(nil)

	booking, err := f.booking.Reserve(ctx, reserveReq(tomorrow, "SUV"))

	require.NoError(t, err)
	assert.Equal(t, domain.CategorySUV, booking.Category)
	assert.Equal(t, domain.BookingConfirmed, booking.Status)
	assert.Equal(t, int64(1), booking.UserID)
	assert.Equal(t, 2000.0, booking.UnitPrice)
	assert.Equal(t, endOfDay, booking.RestoreAt)
	assert.Equal(t, 1, f.store.committed(booking.LedgerKey()))
}

func TestReserve_SeedsUnknownRouteWithDefaultFleet(t *testing.T) {
	f := newFixture(t)

	booking, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Sedan"))
	require.NoError(t, err)

	st := f.store.snapshot()
	assert.Len(t, st.routes, 1)
	for _, c := range domain.Categories {
		assert.Equal(t, 5, st.ceilings[ceilingKey{booking.RouteID, c}].Count)
	}
	assert.Equal(t, 4, f.available(t, tomorrow, domain.CategorySedan))
}

func TestReserve_DefaultsPassengerCountToOne(t *testing.T) {
	f := newFixture(t)
	req := reserveReq(tomorrow, "Hatchback")
	req.NumberOfPassengers = 0

	booking, err := f.booking.Reserve(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 1, booking.PassengerCount)
}

func TestReserve_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  func() services.ReserveRequest
		want *domain.Error
	}{
		{"unknown category", func() services.ReserveRequest { return reserveReq(tomorrow, "Limousine") }, domain.ErrInvalidCategory},
		{"past date", func() services.ReserveRequest { return reserveReq("2026-11-01", "Sedan") }, domain.ErrInvalidDate},
		{"bad date", func() services.ReserveRequest { return reserveReq("02/11/2026", "Sedan") }, domain.ErrInvalidDate},
		{"too many passengers", func() services.ReserveRequest {
			r := reserveReq(tomorrow, "Sedan")
			r.NumberOfPassengers = 5
			return r
		}, domain.ErrInvalidPassengerCount},
		{"same pickup and drop", func() services.ReserveRequest {
			r := reserveReq(tomorrow, "Sedan")
			r.DropLocation = "mumbai"
			return r
		}, domain.ErrInvalidRoute},
		{"missing contact", func() services.ReserveRequest {
			r := reserveReq(tomorrow, "Sedan")
			r.UserDetails.Mobile = " "
			return r
		}, domain.ErrUserNotFound},
		{"unknown user", func() services.ReserveRequest {
			r := reserveReq(tomorrow, "Sedan")
			r.UserDetails.Mobile = "9999999999"
			return r
		}, domain.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			booking, err := f.booking.Reserve(context.Background(), tt.req())

			assert.Nil(t, booking)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.store.snapshot().bookings)
		})
	}
}

func TestReserve_CutoffBoundary(t *testing.T) {
	f := newFixture(t)

	f.clock.Set(time.Date(2026, 11, 2, 22, 0, 0, 0, time.UTC))
	_, err := f.booking.Reserve(context.Background(), reserveReq(today, "Sedan"))
	assert.NoError(t, err)

	f.clock.Set(time.Date(2026, 11, 2, 22, 0, 1, 0, time.UTC))
	_, err = f.booking.Reserve(context.Background(), reserveReq(today, "Sedan"))
	assert.ErrorIs(t, err, domain.ErrPastCutoff)

	_, err = f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Sedan"))
	assert.NoError(t, err, "the cutoff only applies to same-day travel")
}

func TestReserve_SameDayUsesHoldWindow(t *testing.T) {
	f := newFixture(t)

	booking, err := f.booking.Reserve(context.Background(), reserveReq(today, "Sedan"))

	require.NoError(t, err)
	assert.Equal(t, morning.Add(2*time.Minute), booking.RestoreAt)
}

func TestReserve_NoCapacityWhenCeilingReached(t *testing.T) {
	f := newFixture(t)
	f.setCeiling(t, "Sedan", 1)

	first, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Sedan"))
	require.NoError(t, err)

	second, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Sedan"))

	assert.Nil(t, second)
	assert.ErrorIs(t, err, domain.ErrNoCapacity)
	assert.Equal(t, 1, f.store.committed(first.LedgerKey()))

	// Another date has its own ledger entry.
	_, err = f.booking.Reserve(context.Background(), reserveReq("2026-11-04", "Sedan"))
	assert.NoError(t, err)
}

// memStore serialises whole transactions; this checks the capacity decision,
// not postgres row locking.
func TestReserve_ConcurrentRequestsNeverExceedCeiling(t *testing.T) {
	f := newFixture(t)
	f.setCeiling(t, "Prime_SUV", 3)

	const requests = 20
	var (
		wg         sync.WaitGroup
		succeeded  atomic.Int32
		noCapacity atomic.Int32
		key        atomic.Value
	)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Prime_SUV"))
			switch {
			case err == nil:
				succeeded.Add(1)
				key.Store(b.LedgerKey())
			case errors.Is(err, domain.ErrNoCapacity):
				noCapacity.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), succeeded.Load())
	assert.Equal(t, int32(requests-3), noCapacity.Load())
	assert.Equal(t, 3, f.store.committed(key.Load().(domain.LedgerKey)))
	assert.Len(t, f.store.snapshot().bookings, 3)
}

// Same caveat as above: memStore stands in for the ledger row lock.
func TestReserve_LastUnitRace(t *testing.T) {
	f := newFixture(t)
	f.setCeiling(t, "Hatchback", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Hatchback"))
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if errors.Is(err, domain.ErrNoCapacity) {
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, f.available(t, tomorrow, domain.CategoryHatchback))
}

func TestReserve_RollsBackWhenLedgerWriteFails(t *testing.T) {
	f := newFixture(t)
	f.setCeiling(t, "Sedan", 2)
	f.store.fail = func(op string) error {
		if op == "Ledger.Increment" {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Sedan"))

	assert.Error(t, err)
	st := f.store.snapshot()
	assert.Empty(t, st.bookings)
	for _, e := range st.ledger {
		assert.Zero(t, e.Committed)
	}
}

func TestReserve_SchedulingFailureKeepsBooking(t *testing.T) {
	ctx := context.Background()
	scheduler := mocks.NewRestorationScheduler(t)
	f := newFixture(t, func(d *services.Deps) { d.Scheduler = scheduler })

	scheduler.On("Schedule", ctx, mock.Anything, mock.Anything).Return(errors.New("queue down"))

	booking, err := f.booking.Reserve(ctx, reserveReq(tomorrow, "Sedan"))

	require.NoError(t, err)
	assert.Contains(t, f.store.snapshot().bookings, booking.ID)
}

func TestCheckAvailability_UnknownRouteShowsDefaultFleet(t *testing.T) {
	f := newFixture(t)

	items, err := f.booking.CheckAvailability(context.Background(), "Pune", "Nashik", tomorrow)

	require.NoError(t, err)
	require.Len(t, items, len(domain.Categories))
	for _, it := range items {
		assert.Equal(t, 5, it.AvailableCount)
		assert.Equal(t, 5, it.TotalCount)
		assert.Equal(t, "Available", it.Message)
	}
	assert.Empty(t, f.store.snapshot().routes, "a read must not seed the route")
	assert.Zero(t, f.store.txs)
}

func TestCheckAvailability_Messages(t *testing.T) {
	f := newFixture(t)
	f.setCeiling(t, "SUV", 2)

	_, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "SUV"))
	require.NoError(t, err)

	items, err := f.booking.CheckAvailability(context.Background(), "Mumbai", "Pune", tomorrow)
	require.NoError(t, err)

	for _, it := range items {
		if it.Category == domain.CategorySUV {
			assert.Equal(t, 1, it.AvailableCount)
			assert.Equal(t, "Only 1 left", it.Message)
		}
	}
}

func TestCheckAvailability_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	cache := mocks.NewAvailabilityCache(t)
	f := newFixture(t, func(d *services.Deps) { d.Cache = cache })

	cache.On("InvalidateRoute", ctx, mock.AnythingOfType("uuid.UUID")).Return(nil).Once()
	f.setCeiling(t, "Sedan", 3)

	date := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	cached := []domain.Availability{{Category: domain.CategorySedan, AvailableCount: 1, TotalCount: 3, Message: "Only 1 left"}}

	cache.On("Version", ctx, mock.AnythingOfType("uuid.UUID"), date).Return("1.0", nil).Twice()
	cache.On("Get", ctx, mock.AnythingOfType("uuid.UUID"), date, "1.0").Return(nil, false, nil).Once()
	cache.On("Set", ctx, mock.AnythingOfType("uuid.UUID"), date, "1.0", mock.MatchedBy(func(items []domain.Availability) bool {
		return len(items) == len(domain.Categories)
	})).Return(nil).Once()

	items, err := f.booking.CheckAvailability(ctx, "Mumbai", "Pune", tomorrow)
	require.NoError(t, err)
	assert.Len(t, items, len(domain.Categories))

	cache.On("Get", ctx, mock.AnythingOfType("uuid.UUID"), date, "1.0").Return(cached, true, nil).Once()

	items, err = f.booking.CheckAvailability(ctx, "Mumbai", "Pune", tomorrow)
	require.NoError(t, err)
	assert.Equal(t, cached, items)
}

func TestCheckAvailability_VersionErrorSkipsCache(t *testing.T) {
	ctx := context.Background()
	cache := mocks.NewAvailabilityCache(t)
	f := newFixture(t, func(d *services.Deps) { d.Cache = cache })

	cache.On("InvalidateRoute", ctx, mock.AnythingOfType("uuid.UUID")).Return(nil).Once()
	f.setCeiling(t, "Sedan", 3)

	cache.On("Version", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).
		Return("", errors.New("connection refused")).Once()

	items, err := f.booking.CheckAvailability(ctx, "Mumbai", "Pune", tomorrow)
	require.NoError(t, err)
	assert.Len(t, items, len(domain.Categories))
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// versionedCache keeps entries under a generation counter the way the Redis
// adapter does. beforeSet runs once, between the ledger read and the write.
type versionedCache struct {
	mu        sync.Mutex
	versions  map[string]int
	entries   map[string][]domain.Availability
	beforeSet func()
}

func newVersionedCache() *versionedCache {
	return &versionedCache{versions: map[string]int{}, entries: map[string][]domain.Availability{}}
}

func (c *versionedCache) dateKey(routeID uuid.UUID, date time.Time) string {
	return routeID.String() + ":" + date.Format(domain.DateLayout)
}

func (c *versionedCache) Version(ctx context.Context, routeID uuid.UUID, date time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%d.%d", c.versions[routeID.String()], c.versions[c.dateKey(routeID, date)]), nil
}

func (c *versionedCache) Get(ctx context.Context, routeID uuid.UUID, date time.Time, version string) ([]domain.Availability, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.entries[c.dateKey(routeID, date)+":"+version]
	return items, ok, nil
}

func (c *versionedCache) Set(ctx context.Context, routeID uuid.UUID, date time.Time, version string, items []domain.Availability) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.dateKey(routeID, date)+":"+version] = items
	return nil
}

func (c *versionedCache) Invalidate(ctx context.Context, routeID uuid.UUID, date time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[c.dateKey(routeID, date)]++
	return nil
}

func (c *versionedCache) InvalidateRoute(ctx context.Context, routeID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[routeID.String()]++
	return nil
}

func TestCheckAvailability_ReserveDuringReadIsNotCachedStale(t *testing.T) {
	cache := newVersionedCache()
	f := newFixture(t, func(d *services.Deps) { d.Cache = cache })
	f.setCeiling(t, "SUV", 1)

	cache.beforeSet = func() {
		_, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "SUV"))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.available(t, tomorrow, domain.CategorySUV), "read started before the reservation")
	assert.Equal(t, 0, f.available(t, tomorrow, domain.CategorySUV))
	assert.Equal(t, 0, f.available(t, tomorrow, domain.CategorySUV), "served from cache")
}

func TestCheckAvailability_InventoryChangeIsVisibleThroughCache(t *testing.T) {
	cache := newVersionedCache()
	f := newFixture(t, func(d *services.Deps) { d.Cache = cache })
	f.setCeiling(t, "Sedan", 2)

	assert.Equal(t, 2, f.available(t, tomorrow, domain.CategorySedan))

	f.setCeiling(t, "Sedan", 5)
	assert.Equal(t, 5, f.available(t, tomorrow, domain.CategorySedan))
}

func TestUpdateInventory_RejectsCeilingBelowCommitted(t *testing.T) {
	f := newFixture(t)
	f.setCeiling(t, "Sedan", 3)

	for i := 0; i < 2; i++ {
		_, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Sedan"))
		require.NoError(t, err)
	}

	_, err := f.booking.UpdateInventory(context.Background(), services.InventoryUpdate{
		PickupLocation: "Mumbai", DropLocation: "Pune", VehicleType: "Sedan", Available: 1, Price: 1500,
	})

	assert.ErrorIs(t, err, domain.ErrCeilingBelowCommitted)
	assert.Equal(t, 1, f.available(t, tomorrow, domain.CategorySedan), "ceiling must stay at 3")
}

func TestUpdateInventory_RejectsNegativeValues(t *testing.T) {
	f := newFixture(t)

	_, err := f.booking.UpdateInventory(context.Background(), services.InventoryUpdate{
		PickupLocation: "Mumbai", DropLocation: "Pune", VehicleType: "Sedan", Available: -1,
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInventory)
	assert.Zero(t, f.store.txs)
}

func TestReserve_PropagatesTransientStoreError(t *testing.T) {
	f := newFixture(t)
	f.store.fail = func(op string) error {
		if op == "Ledger.Lock" {
			return domain.NewError(domain.CodeTransientStore, "deadlock detected", nil)
		}
		return nil
	}

	_, err := f.booking.Reserve(context.Background(), reserveReq(tomorrow, "Sedan"))

	assert.True(t, domain.IsTransient(err))
	assert.Empty(t, f.store.snapshot().bookings)
}

func TestNewReserveResponse(t *testing.T) {
	b := &domain.Booking{
		ID:             uuid.MustParse("6f1c1b1e-2f57-4a0b-9f3e-3c7a2d0c4b11"),
		Route:          domain.Route{Pickup: "Mumbai", Drop: "Nashik"},
		Category:       domain.CategoryPrimeSUV,
		TravelDate:     time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC),
		PassengerCount: 6,
		Status:         domain.BookingConfirmed,
		UnitPrice:      2200,
		CreatedAt:      morning,
		RestoreAt:      time.Date(2026, 11, 3, 23, 59, 59, 0, time.UTC),
	}

	resp := services.NewReserveResponse(b)

	assert.Equal(t, "6f1c1b1e-2f57-4a0b-9f3e-3c7a2d0c4b11", resp.BookingID)
	assert.Equal(t, "2026-11-03", resp.TravelDate)
	assert.Equal(t, "Prime_SUV", resp.VehicleType)
	assert.Equal(t, "2026-11-03T23:59:59Z", resp.RestoreAt)
}
