package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	repository "github.com/eventpro/booking-api/internal/database/postgres"
	"github.com/eventpro/booking-api/internal/entity"

	"github.com/sirupsen/logrus"
)

const (
	defaultReserveRetries = 5
	defaultRetryBaseDelay = 20 * time.Millisecond
	defaultMaxQuantity    = 50
	defaultStoreTimeout   = 5 * time.Second
)

// BookingOptions настраивает поведение цикла бронирования
type BookingOptions struct {
	MaxQuantity    int
	ReserveRetries int
	RetryBaseDelay time.Duration
	StoreTimeout   time.Duration
}

func (o *BookingOptions) withDefaults() BookingOptions {
	opts := BookingOptions{}
	if o != nil {
		opts = *o
	}
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = defaultMaxQuantity
	}
	if opts.ReserveRetries <= 0 {
		opts.ReserveRetries = defaultReserveRetries
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaultRetryBaseDelay
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return opts
}

type bookingService struct {
	bookingRepo repository.BookingRepository
	eventRepo   repository.EventRepository
	cache       CatalogCache
	deduper     ReservationDeduper
	opts        BookingOptions
}

// NewBookingService создает новый экземпляр BookingService
func NewBookingService(
	bookingRepo repository.BookingRepository,
	eventRepo repository.EventRepository,
	cache CatalogCache,
	deduper ReservationDeduper,
	opts *BookingOptions,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		eventRepo:   eventRepo,
		cache:       cache,
		deduper:     deduper,
		opts:        opts.withDefaults(),
	}
}

// Reserve validates the request against the event's remaining capacity and
// applies the booking insert plus the counter increment as one atomic unit.
// A version conflict means another Reserve or Cancel committed between our
// read and our write; the whole operation is retried from the read, with
// jittered backoff, up to the configured attempt count.
func (s *bookingService) Reserve(ctx context.Context, req *ReserveRequest) (*entity.Booking, error) {
	if req.UserID == "" {
		return nil, entity.ErrUnauthorized
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", entity.ErrInvalidInput)
	}
	if req.Quantity > s.opts.MaxQuantity {
		return nil, fmt.Errorf("%w: quantity exceeds the per-booking limit of %d",
			entity.ErrInvalidInput, s.opts.MaxQuantity)
	}

	// Fast path for a retried request: the original booking is replayed.
	if req.IdempotencyKey != "" && s.deduper != nil {
		if bookingID, found, err := s.deduper.Lookup(ctx, req.UserID, req.IdempotencyKey); err == nil && found {
			return s.GetBooking(ctx, bookingID)
		} else if err != nil {
			logrus.Warnf("Idempotency lookup failed, falling through to store: %v", err)
		}
	}

	for attempt := 0; attempt < s.opts.ReserveRetries; attempt++ {
		booking, err := s.tryReserve(ctx, req)
		if err == nil {
			s.afterReserve(ctx, req, booking)
			return booking, nil
		}

		if !errors.Is(err, entity.ErrContention) {
			if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
				return s.replayReservation(ctx, req)
			}
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"event_id": req.EventID,
			"user_id":  req.UserID,
			"attempt":  attempt + 1,
		}).Debug("Reservation hit a version conflict, retrying")

		if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
			return nil, storeErr(err)
		}
	}

	return nil, fmt.Errorf("%w: event %d", entity.ErrContention, req.EventID)
}

// tryReserve performs a single read-validate-write pass.
func (s *bookingService) tryReserve(ctx context.Context, req *ReserveRequest) (*entity.Booking, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(storeCtx, req.EventID)
	if err != nil {
		return nil, storeErr(err)
	}

	if !event.IsActive() {
		return nil, fmt.Errorf("%w: event %d", entity.ErrEventInactive, event.ID)
	}
	if event.DateTime.Before(time.Now()) {
		return nil, fmt.Errorf("%w: event %d", entity.ErrEventDatePast, event.ID)
	}
	if req.Quantity > event.AvailableSpots() {
		return nil, fmt.Errorf("%w: requested %d, available %d",
			entity.ErrCapacityExceeded, req.Quantity, event.AvailableSpots())
	}

	booking := &entity.Booking{
		EventID:        event.ID,
		UserID:         req.UserID,
		Quantity:       req.Quantity,
		TotalPrice:     float64(req.Quantity) * event.Price,
		Status:         entity.BookingStatusActive,
		IdempotencyKey: req.IdempotencyKey,
	}

	if err := s.bookingRepo.Reserve(storeCtx, booking, event.Version); err != nil {
		return nil, storeErr(err)
	}

	return booking, nil
}

func (s *bookingService) afterReserve(ctx context.Context, req *ReserveRequest, booking *entity.Booking) {
	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"event_id":   booking.EventID,
		"user_id":    booking.UserID,
		"quantity":   booking.Quantity,
	}).Info("Booking created")

	if req.IdempotencyKey != "" && s.deduper != nil {
		if err := s.deduper.Store(ctx, req.UserID, req.IdempotencyKey, booking.ID); err != nil {
			logrus.Warnf("Failed to record idempotency key for booking %d: %v", booking.ID, err)
		}
	}

	s.invalidateCatalog(ctx)
}

// replayReservation resolves the booking the first attempt with this key
// already created.
func (s *bookingService) replayReservation(ctx context.Context, req *ReserveRequest) (*entity.Booking, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	booking, err := s.bookingRepo.GetByIdempotencyKey(storeCtx, req.UserID, req.IdempotencyKey)
	if err != nil {
		return nil, storeErr(err)
	}
	return booking, nil
}

// Cancel reverses a reservation. Ownership and current status are checked
// inside the same transaction that adjusts the counter, so cancelling an
// already-cancelled booking never double-decrements.
func (s *bookingService) Cancel(ctx context.Context, bookingID int64, actingUserID string) error {
	if actingUserID == "" {
		return entity.ErrUnauthorized
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	changed, err := s.bookingRepo.Cancel(storeCtx, bookingID, actingUserID)
	if err != nil {
		if errors.Is(err, entity.ErrInvariantViolation) {
			logrus.WithFields(logrus.Fields{
				"booking_id": bookingID,
				"user_id":    actingUserID,
			}).Error("Cancel refused: counter decrement would go below zero")
		}
		return storeErr(err)
	}

	if changed {
		logrus.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"user_id":    actingUserID,
		}).Info("Booking cancelled")
		s.invalidateCatalog(ctx)
	}

	return nil
}

// GetBooking возвращает бронирование по идентификатору
func (s *bookingService) GetBooking(ctx context.Context, id int64) (*entity.Booking, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	booking, err := s.bookingRepo.GetByID(storeCtx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return booking, nil
}

// GetUserBookings возвращает историю бронирований пользователя вместе с
// данными мероприятий
func (s *bookingService) GetUserBookings(ctx context.Context, userID string) ([]*entity.BookingWithEvent, error) {
	if userID == "" {
		return nil, entity.ErrUnauthorized
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	bookings, err := s.bookingRepo.GetByUserIDWithEvents(storeCtx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return bookings, nil
}

// GetAllBookings возвращает все бронирования
func (s *bookingService) GetAllBookings(ctx context.Context) ([]*entity.Booking, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	bookings, err := s.bookingRepo.GetAll(storeCtx)
	if err != nil {
		return nil, storeErr(err)
	}
	return bookings, nil
}

// GetEventBookings возвращает бронирования для мероприятия
func (s *bookingService) GetEventBookings(ctx context.Context, eventID int64) ([]*entity.Booking, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	bookings, err := s.bookingRepo.GetByEventID(storeCtx, eventID)
	if err != nil {
		return nil, storeErr(err)
	}
	return bookings, nil
}

// GetRecentBookings возвращает последние бронирования
func (s *bookingService) GetRecentBookings(ctx context.Context, limit int) ([]*entity.Booking, error) {
	if limit <= 0 {
		limit = 50
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	bookings, err := s.bookingRepo.GetRecentBookings(storeCtx, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return bookings, nil
}

func (s *bookingService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logrus.Warnf("Failed to invalidate catalog cache: %v", err)
	}
}

// backoff calculates exponential backoff delay with jitter
func (s *bookingService) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return s.opts.RetryBaseDelay
	}

	// Exponential backoff: base * 2^(attempt-1)
	delay := s.opts.RetryBaseDelay * time.Duration(1<<(attempt-1))

	// Apply jitter (±25%)
	jitter := time.Duration(rand.Int63n(int64(delay/2) + 1))
	if rand.Intn(2) == 0 {
		delay += jitter
	} else {
		delay -= jitter
	}

	maxDelay := s.opts.RetryBaseDelay * 16
	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

func (s *bookingService) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// storeErr maps timed-out or aborted store calls onto the Unavailable
// outcome; domain sentinels pass through untouched.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", entity.ErrUnavailable, err)
	}
	return err
}
