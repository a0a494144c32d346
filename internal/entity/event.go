package entity

import (
	"time"
)

type EventStatus string

const (
	EventStatusActive   EventStatus = "active"
	EventStatusInactive EventStatus = "inactive"
)

type Event struct {
	ID              int64       `json:"id" db:"id"`
	Title           string      `json:"title" db:"title"`
	Description     string      `json:"description" db:"description"`
	Location        string      `json:"location" db:"location"`
	ImageURL        string      `json:"image_url" db:"image_url"`
	DateTime        time.Time   `json:"date_time" db:"date_time"`
	Price           float64     `json:"price" db:"price"`
	Capacity        int         `json:"capacity" db:"capacity"`
	CurrentBookings int         `json:"current_bookings" db:"current_bookings"`
	Status          EventStatus `json:"status" db:"status"`
	Version         int64       `json:"-" db:"version"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// AvailableSpots returns the remaining sellable units. The capacity
// invariant keeps this non-negative for committed state.
func (e *Event) AvailableSpots() int {
	return e.Capacity - e.CurrentBookings
}

func (e *Event) IsActive() bool {
	return e.Status == EventStatusActive
}

// CounterDrift reports a mismatch between an event's stored counter and
// the sum of its active booking quantities. Any non-zero drift is an
// invariant violation and is only ever logged, never repaired silently.
type CounterDrift struct {
	EventID         int64 `json:"event_id"`
	CurrentBookings int   `json:"current_bookings"`
	ActiveQuantity  int   `json:"active_quantity"`
}

// EventStats содержит сводку бронирований для мероприятия (admin view)
type EventStats struct {
	EventID        int64   `json:"event_id"`
	ActiveBookings int     `json:"active_bookings"`
	BookedQuantity int     `json:"booked_quantity"`
	Revenue        float64 `json:"revenue"`
	AvailableSpots int     `json:"available_spots"`
	Utilization    float64 `json:"utilization"`
}
