package repository

import (
	"context"
	"time"

	"github.com/eventpro/booking-api/internal/entity"
)

type BookingRepository interface {
	// Reserve inserts the booking and applies the counter increment as one
	// transaction. The event row is updated only when its version still
	// equals expectedVersion; entity.ErrContention is returned otherwise.
	Reserve(ctx context.Context, booking *entity.Booking, expectedVersion int64) error

	// Cancel marks the booking cancelled and reverses the counter
	// adjustment in one transaction. It reports whether state changed:
	// cancelling an already-cancelled booking is a successful no-op.
	Cancel(ctx context.Context, bookingID int64, actingUserID string) (bool, error)

	GetByID(ctx context.Context, id int64) (*entity.Booking, error)
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*entity.Booking, error)

	// Query operations
	GetByUserIDWithEvents(ctx context.Context, userID string) ([]*entity.BookingWithEvent, error)
	GetByEventID(ctx context.Context, eventID int64) ([]*entity.Booking, error)
	GetAll(ctx context.Context) ([]*entity.Booking, error)
	GetRecentBookings(ctx context.Context, limit int) ([]*entity.Booking, error)

	// Statistical operations
	GetEventStats(ctx context.Context, eventID int64) (*entity.EventStats, error)
}

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id int64) (*entity.Event, error)
	GetActive(ctx context.Context, limit int) ([]*entity.Event, error)
	GetAll(ctx context.Context) ([]*entity.Event, error)

	// CRUD операции
	Update(ctx context.Context, event *entity.Event) error
	SetStatus(ctx context.Context, id int64, status entity.EventStatus) error

	// Дополнительные методы
	GetEventsByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Event, error)

	// CounterDrift compares current_bookings against the sum of active
	// booking quantities for every event. Used by the audit worker.
	CounterDrift(ctx context.Context) ([]*entity.CounterDrift, error)
}

type UserRepository interface {
	// Ensure creates the user on first sign-in (role 'user') and refreshes
	// profile fields on subsequent calls. The stored role is never
	// overwritten.
	Ensure(ctx context.Context, user *entity.User) (*entity.User, error)

	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdateRole(ctx context.Context, id string, role entity.UserRole) error
	GetAll(ctx context.Context) ([]*entity.User, error)
}
