package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

var statusByCode = map[domain.Code]int{
	domain.CodeInvalidCategory:       http.StatusBadRequest,
	domain.CodeInvalidPassengerCount: http.StatusBadRequest,
	domain.CodeInvalidDate:           http.StatusBadRequest,
	domain.CodeInvalidRoute:          http.StatusBadRequest,
	domain.CodeInvalidInventory:      http.StatusBadRequest,
	domain.CodePastCutoff:            http.StatusUnprocessableEntity,
	domain.CodeTravelDateElapsed:     http.StatusUnprocessableEntity,
	domain.CodeNoCapacity:            http.StatusConflict,
	domain.CodeAlreadyResolved:       http.StatusConflict,
	domain.CodeCeilingBelowCommitted: http.StatusConflict,
	domain.CodeUserNotFound:          http.StatusNotFound,
	domain.CodeRouteNotFound:         http.StatusNotFound,
	domain.CodeBookingNotFound:       http.StatusNotFound,
	domain.CodeTransientStore:        http.StatusServiceUnavailable,
}

func StatusFor(err error) int {
	if status, ok := statusByCode[domain.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := StatusFor(err)

	var de *domain.Error
	if status == http.StatusInternalServerError || !errors.As(err, &de) {
		log.Error("request failed",
			zap.String("request_id", GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
		return
	}

	if status == http.StatusServiceUnavailable {
		log.Warn("store unavailable", zap.String("request_id", GetRequestID(c)), zap.Error(err))
	}

	msg := de.Msg
	if msg == "" {
		msg = string(de.Code)
	}
	c.JSON(status, gin.H{"success": false, "code": de.Code, "message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
}
