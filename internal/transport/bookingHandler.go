package transport

import (
	"net/http"
	"strconv"

	"github.com/eventpro/booking-api/internal/service"
	"github.com/eventpro/booking-api/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *BookingHandler) Reserve(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	req.EventID = eventID
	req.UserID = middleware.CurrentUser(c).ID
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	booking, err := h.bookingService.Reserve(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid booking id"})
		return
	}

	actingUserID := middleware.CurrentUser(c).ID

	if err := h.bookingService.Cancel(c.Request.Context(), bookingID, actingUserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Booking cancelled successfully",
		Meta:    map[string]interface{}{"booking_id": bookingID},
	})
}

// GetMyBookings возвращает историю бронирований текущего пользователя
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userID := middleware.CurrentUser(c).ID

	bookings, err := h.bookingService.GetUserBookings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid booking id"})
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Owners see their own bookings; anyone else needs the admin surface.
	if booking.UserID != middleware.CurrentUser(c).ID {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: "booking not found"})
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetAllBookings возвращает все бронирования (admin)
func (h *BookingHandler) GetAllBookings(c *gin.Context) {
	// Получаем параметры пагинации
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	bookings, err := h.bookingService.GetAllBookings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	// Применяем пагинацию
	start := offset
	if start > len(bookings) {
		start = len(bookings)
	}
	end := start + limit
	if end > len(bookings) {
		end = len(bookings)
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Bookings retrieved successfully",
		Data:    bookings[start:end],
		Meta: map[string]interface{}{
			"total":    len(bookings),
			"limit":    limit,
			"offset":   offset,
			"has_more": end < len(bookings),
		},
	})
}

// GetEventBookings возвращает бронирования мероприятия (admin)
func (h *BookingHandler) GetEventBookings(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	bookings, err := h.bookingService.GetEventBookings(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Event bookings retrieved successfully",
		Data:    bookings,
		Meta:    map[string]interface{}{"event_id": eventID, "total": len(bookings)},
	})
}

// GetRecentBookings возвращает последние бронирования (admin)
func (h *BookingHandler) GetRecentBookings(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	bookings, err := h.bookingService.GetRecentBookings(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}
