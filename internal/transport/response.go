package transport

import (
	"errors"
	"net/http"

	"github.com/eventpro/booking-api/internal/entity"

	"github.com/gin-gonic/gin"
)

// respondError переводит доменные ошибки в HTTP статусы
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, entity.ErrEventNotFound),
		errors.Is(err, entity.ErrBookingNotFound),
		errors.Is(err, entity.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrCapacityExceeded),
		errors.Is(err, entity.ErrContention):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrEventInactive),
		errors.Is(err, entity.ErrEventDatePast):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, entity.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrInvariantViolation):
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{Success: false, Error: err.Error()})
}
