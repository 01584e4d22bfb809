package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/services"
	"github.com/srgjo27/taxi_availability/internal/platform/retry"
)

type AdminHandler struct {
	reservations ReservationService
	lifecycle    LifecycleService
	retry        retry.Policy
	log          *zap.Logger
}

func NewAdminHandler(reservations ReservationService, lifecycle LifecycleService, policy retry.Policy, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{reservations: reservations, lifecycle: lifecycle, retry: policy, log: log}
}

func (h *AdminHandler) UpdateInventory(c *gin.Context) {
	var req services.InventoryUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}

	var ceiling domain.Ceiling
	err := h.retry.Do(c.Request.Context(), domain.IsTransient, nil, func(ctx context.Context) error {
		var err error
		ceiling, err = h.reservations.UpdateInventory(ctx, req)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Inventory updated",
		"data": gin.H{
			"pickupLocation": ceiling.Route.Pickup,
			"dropLocation":   ceiling.Route.Drop,
			"vehicleType":    ceiling.Category,
			"available":      ceiling.Count,
			"price":          ceiling.Price,
		},
	})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		badRequest(c, "invalid user id")
		return
	}

	var result *services.DeleteUserResult
	err = h.retry.Do(c.Request.Context(), domain.IsTransient, nil, func(ctx context.Context) error {
		var err error
		result, err = h.lifecycle.DeleteUser(ctx, userID)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User deleted",
		"data": gin.H{
			"user_id":          result.UserID,
			"bookingsResolved": len(result.Archived),
			"archiveRowsKept":  result.Detached,
		},
	})
}

type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	results := make(gin.H, len(h.checks))

	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	c.JSON(status, gin.H{"success": status == http.StatusOK, "checks": results})
}
