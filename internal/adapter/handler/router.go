package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	AdminToken      string
}

func NewRouter(cfg RouterConfig, bookings *BookingHandler, admin *AdminHandler, health *HealthHandler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(log), gin.Recovery(), CORS(cfg.AllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "route not found",
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
		})
	})

	limiter := NewRateLimiter(cfg.RateLimitPerMin)

	api := r.Group("/api")
	{
		api.GET("/health", health.Health)
		api.GET("/availability", bookings.CheckAvailability)

		b := api.Group("/bookings")
		b.POST("", limiter.Middleware(log), bookings.CreateBooking)
		b.GET("", bookings.ListBookings)
		b.GET("/archive", bookings.ListArchived)
		b.POST("/:id/cancel", bookings.CancelBooking)

		a := api.Group("/admin", AdminOnly(cfg.AdminToken))
		a.PUT("/inventory", admin.UpdateInventory)
		a.DELETE("/users/:id", admin.DeleteUser)
	}

	return r
}
