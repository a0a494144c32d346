package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eventpro/booking-api/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	eventService service.EventService
}

func NewEventHandler(eventService service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// GetActiveEvents возвращает каталог активных мероприятий
func (h *EventHandler) GetActiveEvents(c *gin.Context) {
	events, err := h.eventService.GetActiveEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	event, err := h.eventService.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// GetAvailability возвращает свободные места мероприятия
func (h *EventHandler) GetAvailability(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	available, err := h.eventService.GetAvailability(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id":        eventID,
		"available_spots": available,
	})
}

// ListEvents возвращает все мероприятия, при заданных from/to — только в
// интервале (admin)
func (h *EventHandler) ListEvents(c *gin.Context) {
	var from, to time.Time
	var err error

	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid 'from' timestamp"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid 'to' timestamp"})
			return
		}
	}

	events, err := h.eventService.ListEvents(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Events retrieved successfully",
		Data:    events,
		Meta:    map[string]interface{}{"total": len(events)},
	})
}

// CreateEvent создает новое мероприятие (admin)
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	event, err := h.eventService.CreateEvent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// UpdateEvent обновляет мероприятие (admin)
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	var req service.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	event, err := h.eventService.UpdateEvent(c.Request.Context(), eventID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// DeactivateEvent снимает мероприятие с публикации (admin)
func (h *EventHandler) DeactivateEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	if err := h.eventService.DeactivateEvent(c.Request.Context(), eventID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Event deactivated successfully",
		Meta:    map[string]interface{}{"event_id": eventID},
	})
}

// GetEventStats возвращает статистику бронирований мероприятия (admin)
func (h *EventHandler) GetEventStats(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	stats, err := h.eventService.GetEventStats(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
