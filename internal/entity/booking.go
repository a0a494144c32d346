package entity

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID             int64         `json:"id" db:"id"`
	EventID        int64         `json:"event_id" db:"event_id"`
	UserID         string        `json:"user_id" db:"user_id"`
	Quantity       int           `json:"quantity" db:"quantity"`
	TotalPrice     float64       `json:"total_price" db:"total_price"`
	Status         BookingStatus `json:"status" db:"status"`
	IdempotencyKey string        `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// BookingWithEvent joins a booking with the event it references for the
// history listing. Event is nil when the referenced event no longer
// resolves; the listing degrades instead of failing.
type BookingWithEvent struct {
	Booking
	Event *Event `json:"event,omitempty"`
}
