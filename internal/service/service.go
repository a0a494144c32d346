package service

import (
	"context"
	"time"

	"github.com/eventpro/booking-api/internal/entity"
)

// BookingService определяет интерфейс для операций с бронированиями
type BookingService interface {
	// Основные операции
	Reserve(ctx context.Context, req *ReserveRequest) (*entity.Booking, error)
	Cancel(ctx context.Context, bookingID int64, actingUserID string) error
	GetBooking(ctx context.Context, id int64) (*entity.Booking, error)
	GetUserBookings(ctx context.Context, userID string) ([]*entity.BookingWithEvent, error)

	// Административные операции
	GetAllBookings(ctx context.Context) ([]*entity.Booking, error)
	GetEventBookings(ctx context.Context, eventID int64) ([]*entity.Booking, error)
	GetRecentBookings(ctx context.Context, limit int) ([]*entity.Booking, error)
}

type EventService interface {
	// Каталог
	GetActiveEvents(ctx context.Context) ([]*entity.Event, error)
	GetEvent(ctx context.Context, id int64) (*entity.Event, error)
	GetAvailability(ctx context.Context, id int64) (int, error)

	// Административные операции
	ListEvents(ctx context.Context, from, to time.Time) ([]*entity.Event, error)
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error)
	UpdateEvent(ctx context.Context, id int64, req *UpdateEventRequest) (*entity.Event, error)
	DeactivateEvent(ctx context.Context, id int64) error
	GetEventStats(ctx context.Context, id int64) (*entity.EventStats, error)

	// RefreshCatalogCache перечитывает активные мероприятия в кэш
	RefreshCatalogCache(ctx context.Context) error
}

// UserService defines the interface for identity and role resolution
type UserService interface {
	// ResolveIdentity maps a verified identity onto a stored user record,
	// creating it with role 'user' on first sign-in.
	ResolveIdentity(ctx context.Context, identity *Identity) (*entity.User, error)

	GetUser(ctx context.Context, id string) (*entity.User, error)

	// RequireAdmin re-reads the role from the store; client-held role data
	// is never trusted for authorization.
	RequireAdmin(ctx context.Context, userID string) (*entity.User, error)

	UpdateRole(ctx context.Context, id string, role entity.UserRole) error
	GetAllUsers(ctx context.Context) ([]*entity.User, error)
}

// ReserveRequest представляет данные для бронирования мест
type ReserveRequest struct {
	EventID        int64  `json:"event_id"`
	UserID         string `json:"-"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
	IdempotencyKey string `json:"idempotency_key"`
}

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	ImageURL    string    `json:"image_url"`
	DateTime    time.Time `json:"date_time" binding:"required"`
	Price       float64   `json:"price" binding:"min=0"`
	Capacity    int       `json:"capacity" binding:"required,min=1"`
}

type UpdateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	ImageURL    *string    `json:"image_url"`
	DateTime    *time.Time `json:"date_time"`
	Price       *float64   `json:"price"`
	Capacity    *int       `json:"capacity"`
}

// Identity carries the fields the identity provider vouches for.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// CatalogCache абстрагирует кэш каталога мероприятий
type CatalogCache interface {
	GetActiveEvents(ctx context.Context) ([]*entity.Event, error)
	SetActiveEvents(ctx context.Context, events []*entity.Event) error
	Invalidate(ctx context.Context) error
}

// ReservationDeduper records completed reservation keys so retried Reserve
// calls replay the original booking.
type ReservationDeduper interface {
	Lookup(ctx context.Context, userID, key string) (int64, bool, error)
	Store(ctx context.Context, userID, key string, bookingID int64) error
}
