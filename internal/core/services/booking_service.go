package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/ports"
)

type UserDetails struct {
	Mobile string `json:"mobile"`
}

type ReserveRequest struct {
	PickupLocation     string      `json:"pickupLocation"`
	DropLocation       string      `json:"dropLocation"`
	VehicleType        string      `json:"vehicleType"`
	TravelDate         string      `json:"travelDate"`
	NumberOfPassengers int         `json:"numberOfPassengers"`
	UserDetails        UserDetails `json:"userDetails"`
}

type ReserveResponse struct {
	BookingID          string  `json:"booking_id"`
	BookingDate        string  `json:"bookingDate"`
	TravelDate         string  `json:"travelDate"`
	VehicleType        string  `json:"vehicleType"`
	NumberOfPassengers int     `json:"numberOfPassengers"`
	PickupLocation     string  `json:"pickupLocation"`
	DropLocation       string  `json:"dropLocation"`
	Price              float64 `json:"price"`
	Status             string  `json:"status"`
	RestoreAt          string  `json:"restoreAt"`
}

func NewReserveResponse(b *domain.Booking) ReserveResponse {
	return ReserveResponse{
		BookingID:          b.ID.String(),
		BookingDate:        b.CreatedAt.Format(time.RFC3339),
		TravelDate:         b.TravelDate.Format(domain.DateLayout),
		VehicleType:        string(b.Category),
		NumberOfPassengers: b.PassengerCount,
		PickupLocation:     b.Route.Pickup,
		DropLocation:       b.Route.Drop,
		Price:              b.UnitPrice,
		Status:             string(b.Status),
		RestoreAt:          b.RestoreAt.Format(time.RFC3339),
	}
}

type InventoryUpdate struct {
	PickupLocation string  `json:"pickupLocation"`
	DropLocation   string  `json:"dropLocation"`
	VehicleType    string  `json:"vehicleType"`
	Available      int     `json:"available"`
	Price          float64 `json:"price"`
}

// BookingService is the reservation transaction manager: every capacity
// check and ledger increment happens inside one store transaction.
type BookingService struct {
	engine
}

func NewBookingService(d Deps) *BookingService {
	return &BookingService{engine: newEngine(d)}
}

func (s *BookingService) Reserve(ctx context.Context, req ReserveRequest) (*domain.Booking, error) {
	category, err := domain.ParseCategory(req.VehicleType)
	if err != nil {
		return nil, err
	}

	route, err := domain.NewRoute(req.PickupLocation, req.DropLocation)
	if err != nil {
		return nil, err
	}

	travelDate, err := domain.ParseTravelDate(req.TravelDate)
	if err != nil {
		return nil, err
	}

	passengers := req.NumberOfPassengers
	if passengers == 0 {
		passengers = 1
	}
	if passengers < 0 || passengers > category.SeatingCapacity() {
		return nil, domain.NewError(domain.CodeInvalidPassengerCount,
			fmt.Sprintf("%s seats between 1 and %d passengers", category, category.SeatingCapacity()), nil)
	}

	now := s.now()
	restoreAt, err := s.restoreDeadline(now, travelDate)
	if err != nil {
		return nil, err
	}

	contact := strings.TrimSpace(req.UserDetails.Mobile)
	if contact == "" {
		return nil, domain.NewError(domain.CodeUserNotFound, "user contact is required", nil)
	}

	userID, err := s.Store.Repos().Users.FindByContact(ctx, contact)
	if err != nil {
		return nil, err
	}

	var booking *domain.Booking
	err = s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		ceiling, err := s.ceilingFor(ctx, repos, route, category)
		if err != nil {
			return err
		}

		key := domain.LedgerKey{RouteID: ceiling.RouteID, Category: category, TravelDate: travelDate}
		entry, err := repos.Ledger.Lock(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to lock ledger %s: %w", key, err)
		}

		if entry.Committed >= ceiling.Count {
			return domain.NewError(domain.CodeNoCapacity,
				fmt.Sprintf("no %s available on %s for %s", category, travelDate.Format(domain.DateLayout), route), nil)
		}

		booking = &domain.Booking{
			ID:             uuid.New(),
			RouteID:        ceiling.RouteID,
			Route:          route,
			Category:       category,
			TravelDate:     travelDate,
			PassengerCount: passengers,
			UserID:         userID,
			Status:         domain.BookingConfirmed,
			UnitPrice:      ceiling.Price,
			RestoreAt:      restoreAt,
			CreatedAt:      now,
		}

		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}

		if err := repos.Ledger.Increment(ctx, key, restoreAt); err != nil {
			return fmt.Errorf("failed to increment ledger %s: %w", key, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Scheduler != nil {
		if err := s.Scheduler.Schedule(ctx, booking.ID, booking.RestoreAt); err != nil {
			// Reconcile and the expiry sweep pick the booking up from restore_at.
			s.Logger.Error("failed to schedule restoration",
				zap.String("booking_id", booking.ID.String()), zap.Error(err))
		}
	}

	s.afterLedgerWrite(ctx, booking.LedgerKey(), EventBookingReserved, bookingPayload(booking))

	s.Logger.Info("booking reserved",
		zap.String("booking_id", booking.ID.String()),
		zap.String("route", route.String()),
		zap.String("vehicle_type", string(category)),
		zap.String("travel_date", req.TravelDate),
		zap.Time("restore_at", booking.RestoreAt),
	)

	return booking, nil
}

// restoreDeadline rejects past dates and late same-day requests, and returns
// when the reserved unit goes back to the pool.
func (s *BookingService) restoreDeadline(now, travelDate time.Time) (time.Time, error) {
	today := domain.CivilDate(now)

	if travelDate.Before(today) {
		return time.Time{}, domain.NewError(domain.CodeInvalidDate, "travel date cannot be in the past", nil)
	}

	if travelDate.Equal(today) {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.Policy.Location)
		if now.After(midnight.Add(s.Policy.Cutoff)) {
			return time.Time{}, domain.NewError(domain.CodePastCutoff,
				fmt.Sprintf("same-day bookings close at %s", midnight.Add(s.Policy.Cutoff).Format("15:04")), nil)
		}
		return now.Add(s.Policy.SameDayHold), nil
	}

	return domain.EndOfTravelDay(travelDate, s.Policy.Location), nil
}

func (s *BookingService) ceilingFor(ctx context.Context, repos ports.Repositories, route domain.Route, category domain.Category) (domain.Ceiling, error) {
	ceiling, err := repos.Inventory.GetCeiling(ctx, route, category)
	if err == nil {
		return ceiling, nil
	}
	if !errors.Is(err, domain.ErrRouteNotFound) {
		return domain.Ceiling{}, err
	}

	if _, err := repos.Inventory.EnsureRoute(ctx, route, s.Policy.Fleet); err != nil {
		return domain.Ceiling{}, fmt.Errorf("failed to seed route %s: %w", route, err)
	}
	s.Logger.Info("seeded default fleet", zap.String("route", route.String()), zap.Int("fleet", s.Policy.Fleet.Count))

	return repos.Inventory.GetCeiling(ctx, route, category)
}

func (s *BookingService) CheckAvailability(ctx context.Context, pickup, drop, date string) ([]domain.Availability, error) {
	route, err := domain.NewRoute(pickup, drop)
	if err != nil {
		return nil, err
	}

	travelDate, err := domain.ParseTravelDate(date)
	if err != nil {
		return nil, err
	}

	repos := s.Store.Repos()
	ceilings, err := repos.Inventory.ListCeilings(ctx, route)
	if err != nil && !errors.Is(err, domain.ErrRouteNotFound) {
		return nil, err
	}

	var routeID uuid.UUID
	for _, c := range ceilings {
		routeID = c.RouteID
	}

	// Unknown routes read as the default fleet; the first reservation seeds them.
	if routeID == uuid.Nil {
		out := make([]domain.Availability, 0, len(domain.Categories))
		for _, c := range s.Policy.Fleet.Ceilings(uuid.Nil, route) {
			out = append(out, domain.NewAvailability(c, 0))
		}
		return out, nil
	}

	// The version is taken before any read that feeds the cached value, so a
	// write that lands in between bumps it and the Set below goes unserved.
	version, cacheable := "", false
	if s.Cache != nil {
		v, err := s.Cache.Version(ctx, routeID, travelDate)
		if err != nil {
			s.Logger.Warn("availability cache version read failed", zap.Error(err))
		} else {
			version, cacheable = v, true
		}
	}

	if cacheable {
		if cached, ok, err := s.Cache.Get(ctx, routeID, travelDate, version); err != nil {
			s.Logger.Warn("availability cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}

		// Ceilings listed above predate the version.
		ceilings, err = repos.Inventory.ListCeilings(ctx, route)
		if err != nil {
			return nil, err
		}
	}

	entries, err := repos.Ledger.ListForRouteDate(ctx, routeID, travelDate)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[domain.Category]domain.Ceiling, len(ceilings))
	for _, c := range ceilings {
		byCategory[c.Category] = c
	}

	committed := make(map[domain.Category]int, len(entries))
	for _, e := range entries {
		committed[e.Key.Category] = e.Committed
	}

	out := make([]domain.Availability, 0, len(domain.Categories))
	for _, category := range domain.Categories {
		c, ok := byCategory[category]
		if !ok {
			c = domain.Ceiling{
				RouteID:  routeID,
				Route:    route,
				Category: category,
				Count:    s.Policy.Fleet.Count,
				Price:    s.Policy.Fleet.Prices[category],
			}
		}
		out = append(out, domain.NewAvailability(c, committed[category]))
	}

	if cacheable {
		if err := s.Cache.Set(ctx, routeID, travelDate, version, out); err != nil {
			s.Logger.Warn("availability cache write failed", zap.Error(err))
		}
	}

	return out, nil
}

// UpdateInventory changes a route's fleet ceiling. Lowering it below what is
// already committed for an upcoming date is rejected.
func (s *BookingService) UpdateInventory(ctx context.Context, req InventoryUpdate) (domain.Ceiling, error) {
	category, err := domain.ParseCategory(req.VehicleType)
	if err != nil {
		return domain.Ceiling{}, err
	}

	route, err := domain.NewRoute(req.PickupLocation, req.DropLocation)
	if err != nil {
		return domain.Ceiling{}, err
	}

	if req.Available < 0 || req.Price < 0 {
		return domain.Ceiling{}, domain.NewError(domain.CodeInvalidInventory, "available and price must not be negative", nil)
	}

	var ceiling domain.Ceiling
	err = s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		var err error
		ceiling, err = repos.Inventory.UpsertCeiling(ctx, route, category, req.Available, req.Price)
		if err != nil {
			return err
		}

		maxCommitted, err := repos.Ledger.MaxCommitted(ctx, ceiling.RouteID, category, s.today())
		if err != nil {
			return err
		}
		if maxCommitted > req.Available {
			return domain.NewError(domain.CodeCeilingBelowCommitted,
				fmt.Sprintf("%d %s already booked on an upcoming date", maxCommitted, category), nil)
		}
		return nil
	})
	if err != nil {
		return domain.Ceiling{}, err
	}

	if s.Cache != nil {
		if err := s.Cache.InvalidateRoute(ctx, ceiling.RouteID); err != nil {
			s.Logger.Warn("availability cache invalidation failed", zap.String("route", route.String()), zap.Error(err))
		}
	}

	s.Logger.Info("inventory updated",
		zap.String("route", route.String()),
		zap.String("vehicle_type", string(category)),
		zap.Int("available", req.Available),
		zap.Float64("price", req.Price),
	)

	return ceiling, nil
}
