package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	repository "github.com/eventpro/booking-api/internal/database/postgres"
	"github.com/eventpro/booking-api/internal/entity"

	"github.com/sirupsen/logrus"
)

type eventService struct {
	eventRepo     repository.EventRepository
	bookingRepo   repository.BookingRepository
	cache         CatalogCache
	upcomingLimit int
	storeTimeout  time.Duration
}

// NewEventService создает новый экземпляр EventService
func NewEventService(
	eventRepo repository.EventRepository,
	bookingRepo repository.BookingRepository,
	cache CatalogCache,
	upcomingLimit int,
	storeTimeout time.Duration,
) EventService {
	if upcomingLimit <= 0 {
		upcomingLimit = 20
	}
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &eventService{
		eventRepo:     eventRepo,
		bookingRepo:   bookingRepo,
		cache:         cache,
		upcomingLimit: upcomingLimit,
		storeTimeout:  storeTimeout,
	}
}

// GetActiveEvents возвращает активные мероприятия, сначала из кэша
func (s *eventService) GetActiveEvents(ctx context.Context) ([]*entity.Event, error) {
	if s.cache != nil {
		events, err := s.cache.GetActiveEvents(ctx)
		if err == nil {
			return events, nil
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	events, err := s.eventRepo.GetActive(storeCtx, s.upcomingLimit)
	if err != nil {
		return nil, storeErr(err)
	}

	if s.cache != nil {
		if err := s.cache.SetActiveEvents(ctx, events); err != nil {
			logrus.Warnf("Failed to populate catalog cache: %v", err)
		}
	}

	return events, nil
}

func (s *eventService) GetEvent(ctx context.Context, id int64) (*entity.Event, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(storeCtx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return event, nil
}

// GetAvailability возвращает остаток мест; инвариант держит его
// неотрицательным
func (s *eventService) GetAvailability(ctx context.Context, id int64) (int, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return 0, err
	}
	return event.AvailableSpots(), nil
}

// ListEvents возвращает все мероприятия независимо от статуса, при заданном
// интервале — только попадающие в него (admin)
func (s *eventService) ListEvents(ctx context.Context, from, to time.Time) ([]*entity.Event, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if from.IsZero() && to.IsZero() {
		events, err := s.eventRepo.GetAll(storeCtx)
		if err != nil {
			return nil, storeErr(err)
		}
		return events, nil
	}

	if to.IsZero() {
		to = from.AddDate(1, 0, 0)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end precedes start", entity.ErrInvalidInput)
	}

	events, err := s.eventRepo.GetEventsByDateRange(storeCtx, from, to)
	if err != nil {
		return nil, storeErr(err)
	}
	return events, nil
}

// CreateEvent создает мероприятие (admin)
func (s *eventService) CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", entity.ErrInvalidInput)
	}
	if req.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be positive", entity.ErrInvalidInput)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", entity.ErrInvalidInput)
	}
	if req.DateTime.Before(time.Now()) {
		return nil, entity.ErrEventDatePast
	}

	event := &entity.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		ImageURL:    req.ImageURL,
		DateTime:    req.DateTime,
		Price:       req.Price,
		Capacity:    req.Capacity,
		Status:      entity.EventStatusActive,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.eventRepo.Create(storeCtx, event); err != nil {
		return nil, storeErr(err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"title":    event.Title,
		"capacity": event.Capacity,
	}).Info("Event created")

	s.invalidate(ctx)
	return event, nil
}

// UpdateEvent изменяет мероприятие (admin). Вместимость нельзя опустить
// ниже уже забронированных мест.
func (s *eventService) UpdateEvent(ctx context.Context, id int64, req *UpdateEventRequest) (*entity.Event, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(storeCtx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.ImageURL != nil {
		event.ImageURL = *req.ImageURL
	}
	if req.DateTime != nil {
		event.DateTime = *req.DateTime
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, fmt.Errorf("%w: price cannot be negative", entity.ErrInvalidInput)
		}
		event.Price = *req.Price
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, fmt.Errorf("%w: capacity must be positive", entity.ErrInvalidInput)
		}
		if *req.Capacity < event.CurrentBookings {
			return nil, fmt.Errorf("%w: capacity %d is below %d already booked",
				entity.ErrInvalidInput, *req.Capacity, event.CurrentBookings)
		}
		event.Capacity = *req.Capacity
	}

	if err := s.eventRepo.Update(storeCtx, event); err != nil {
		if errors.Is(err, entity.ErrEventNotFound) {
			// The guarded update reports zero rows both for a missing event
			// and for a capacity raced below the booked count.
			return nil, fmt.Errorf("%w: event changed concurrently", entity.ErrContention)
		}
		return nil, storeErr(err)
	}

	s.invalidate(ctx)
	return event, nil
}

// DeactivateEvent скрывает мероприятие из каталога (admin)
func (s *eventService) DeactivateEvent(ctx context.Context, id int64) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.eventRepo.SetStatus(storeCtx, id, entity.EventStatusInactive); err != nil {
		return storeErr(err)
	}

	logrus.WithField("event_id", id).Info("Event deactivated")
	s.invalidate(ctx)
	return nil
}

// GetEventStats возвращает сводку бронирований мероприятия (admin)
func (s *eventService) GetEventStats(ctx context.Context, id int64) (*entity.EventStats, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stats, err := s.bookingRepo.GetEventStats(storeCtx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return stats, nil
}

// RefreshCatalogCache перечитывает активные мероприятия в кэш; используется
// воркером для прогрева
func (s *eventService) RefreshCatalogCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	events, err := s.eventRepo.GetActive(storeCtx, s.upcomingLimit)
	if err != nil {
		return storeErr(err)
	}

	return s.cache.SetActiveEvents(ctx, events)
}

func (s *eventService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logrus.Warnf("Failed to invalidate catalog cache: %v", err)
	}
}
