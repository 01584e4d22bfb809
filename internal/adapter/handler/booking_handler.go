package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/services"
	"github.com/srgjo27/taxi_availability/internal/platform/retry"
)

type ReservationService interface {
	Reserve(ctx context.Context, req services.ReserveRequest) (*domain.Booking, error)
	CheckAvailability(ctx context.Context, pickup, drop, date string) ([]domain.Availability, error)
	UpdateInventory(ctx context.Context, req services.InventoryUpdate) (domain.Ceiling, error)
}

type LifecycleService interface {
	Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (*domain.ArchivedBooking, error)
	DeleteUser(ctx context.Context, userID int64) (*services.DeleteUserResult, error)
	ListBookings(ctx context.Context, contact string, filter domain.BookingFilter) ([]domain.Booking, error)
	ListArchived(ctx context.Context, contact string) ([]domain.ArchivedBooking, error)
}

// TransientRetry is the caller-side retry for TransientStoreError.
var TransientRetry = retry.Policy{
	Attempts:   3,
	Delay:      50 * time.Millisecond,
	MaxDelay:   500 * time.Millisecond,
	Multiplier: 2,
}

type BookingHandler struct {
	reservations ReservationService
	lifecycle    LifecycleService
	retry        retry.Policy
	log          *zap.Logger
}

func NewBookingHandler(reservations ReservationService, lifecycle LifecycleService, policy retry.Policy, log *zap.Logger) *BookingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{reservations: reservations, lifecycle: lifecycle, retry: policy, log: log}
}

func (h *BookingHandler) withRetry(c *gin.Context, fn func(ctx context.Context) error) error {
	return h.retry.Do(c.Request.Context(), domain.IsTransient, func(attempt int, wait time.Duration, err error) {
		h.log.Warn("retrying after transient store error",
			zap.String("request_id", GetRequestID(c)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}, fn)
}

func (h *BookingHandler) CheckAvailability(c *gin.Context) {
	pickup := c.Query("pickupLocation")
	drop := c.Query("dropLocation")
	date := c.Query("travelDate")

	if pickup == "" || drop == "" || date == "" {
		badRequest(c, "pickupLocation, dropLocation and travelDate are required")
		return
	}

	var items []domain.Availability
	err := h.withRetry(c, func(ctx context.Context) error {
		var err error
		items, err = h.reservations.CheckAvailability(ctx, pickup, drop, date)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"pickupLocation": strings.TrimSpace(pickup),
		"dropLocation":   strings.TrimSpace(drop),
		"travelDate":     date,
		"data":           items,
	})
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req services.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}

	if req.TravelDate == "" || req.VehicleType == "" || req.PickupLocation == "" || req.DropLocation == "" {
		badRequest(c, "missing required booking details")
		return
	}

	var booking *domain.Booking
	err := h.withRetry(c, func(ctx context.Context) error {
		var err error
		booking, err = h.reservations.Reserve(ctx, req)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Booking confirmed",
		"data":    services.NewReserveResponse(booking),
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.log, domain.NewError(domain.CodeBookingNotFound, "unknown booking id", nil))
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json body")
			return
		}
	}

	var archived *domain.ArchivedBooking
	err = h.withRetry(c, func(ctx context.Context) error {
		var err error
		archived, err = h.lifecycle.Cancel(ctx, bookingID, req.Reason)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Booking cancelled",
		"data":    newArchivedView(*archived),
	})
}

func (h *BookingHandler) ListBookings(c *gin.Context) {
	contact := strings.TrimSpace(c.Query("mobile"))
	if contact == "" {
		badRequest(c, "mobile is required")
		return
	}

	filter := domain.BookingFilter{
		Pickup: strings.TrimSpace(c.Query("pickupLocation")),
		Drop:   strings.TrimSpace(c.Query("dropLocation")),
	}

	if v := c.Query("travelDate"); v != "" {
		date, err := domain.ParseTravelDate(v)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		filter.TravelDate = &date
	}

	if v := c.Query("vehicleType"); v != "" {
		category, err := domain.ParseCategory(v)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		filter.Category = category
	}

	var bookings []domain.Booking
	err := h.withRetry(c, func(ctx context.Context) error {
		var err error
		bookings, err = h.lifecycle.ListBookings(ctx, contact, filter)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	out := make([]services.ReserveResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, services.NewReserveResponse(&bookings[i]))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

func (h *BookingHandler) ListArchived(c *gin.Context) {
	contact := strings.TrimSpace(c.Query("mobile"))
	if contact == "" {
		badRequest(c, "mobile is required")
		return
	}

	var archived []domain.ArchivedBooking
	err := h.withRetry(c, func(ctx context.Context) error {
		var err error
		archived, err = h.lifecycle.ListArchived(ctx, contact)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	out := make([]archivedView, 0, len(archived))
	for _, a := range archived {
		out = append(out, newArchivedView(a))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

type archivedView struct {
	BookingID          string  `json:"booking_id"`
	TravelDate         string  `json:"travelDate"`
	VehicleType        string  `json:"vehicleType"`
	NumberOfPassengers int     `json:"numberOfPassengers"`
	PickupLocation     string  `json:"pickupLocation"`
	DropLocation       string  `json:"dropLocation"`
	Price              float64 `json:"price"`
	Status             string  `json:"status"`
	Note               string  `json:"note,omitempty"`
	UserID             *int64  `json:"user_id"`
	ArchivedAt         string  `json:"archivedAt"`
}

func newArchivedView(a domain.ArchivedBooking) archivedView {
	return archivedView{
		BookingID:          a.ID.String(),
		TravelDate:         a.TravelDate.Format(domain.DateLayout),
		VehicleType:        string(a.Category),
		NumberOfPassengers: a.PassengerCount,
		PickupLocation:     a.Route.Pickup,
		DropLocation:       a.Route.Drop,
		Price:              a.UnitPrice,
		Status:             string(a.Reason),
		Note:               a.Note,
		UserID:             a.UserID,
		ArchivedAt:         a.ArchivedAt.Format(time.RFC3339),
	}
}
