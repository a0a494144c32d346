package service

import (
	"context"
	"testing"
	"time"

	"github.com/eventpro/booking-api/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventFixture(t *testing.T) (EventService, *memStore, *fakeCache) {
	t.Helper()

	store := newMemStore()
	cache := &fakeCache{}
	svc := NewEventService(
		&fakeEventRepo{store: store},
		&fakeBookingRepo{store: store},
		cache,
		20,
		time.Second,
	)
	return svc, store, cache
}

// TestCreateEvent проверяет валидацию при создании мероприятия
func TestCreateEvent(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name    string
		req     *CreateEventRequest
		wantErr error
	}{
		{
			name: "valid event",
			req: &CreateEventRequest{
				Title:    "Conference",
				Location: "Main hall",
				DateTime: future,
				Price:    1500,
				Capacity: 200,
			},
		},
		{
			name:    "missing title",
			req:     &CreateEventRequest{DateTime: future, Price: 100, Capacity: 10},
			wantErr: entity.ErrInvalidInput,
		},
		{
			name:    "zero capacity",
			req:     &CreateEventRequest{Title: "Conference", DateTime: future, Price: 100, Capacity: 0},
			wantErr: entity.ErrInvalidInput,
		},
		{
			name:    "negative price",
			req:     &CreateEventRequest{Title: "Conference", DateTime: future, Price: -1, Capacity: 10},
			wantErr: entity.ErrInvalidInput,
		},
		{
			name:    "date in the past",
			req:     &CreateEventRequest{Title: "Conference", DateTime: time.Now().Add(-time.Hour), Price: 100, Capacity: 10},
			wantErr: entity.ErrEventDatePast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newEventFixture(t)

			event, err := svc.CreateEvent(context.Background(), tt.req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotZero(t, event.ID)
			assert.Equal(t, entity.EventStatusActive, event.Status)
			assert.Equal(t, 0, event.CurrentBookings)
		})
	}
}

// TestUpdateEvent проверяет частичное обновление и защиту вместимости
func TestUpdateEvent(t *testing.T) {
	t.Run("partial update keeps other fields", func(t *testing.T) {
		svc, store, _ := newEventFixture(t)
		store.addEvent(futureEvent(100, 0, 500))

		title := "Renamed"
		updated, err := svc.UpdateEvent(context.Background(), 1, &UpdateEventRequest{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, float64(500), updated.Price)
		assert.Equal(t, 100, updated.Capacity)
	})

	t.Run("capacity below booked is rejected", func(t *testing.T) {
		svc, store, _ := newEventFixture(t)
		store.addEvent(futureEvent(100, 40, 500))

		capacity := 30
		_, err := svc.UpdateEvent(context.Background(), 1, &UpdateEventRequest{Capacity: &capacity})
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	})

	t.Run("capacity can shrink to booked count", func(t *testing.T) {
		svc, store, _ := newEventFixture(t)
		store.addEvent(futureEvent(100, 40, 500))

		capacity := 40
		updated, err := svc.UpdateEvent(context.Background(), 1, &UpdateEventRequest{Capacity: &capacity})
		require.NoError(t, err)
		assert.Equal(t, 40, updated.Capacity)
		assert.Equal(t, 0, updated.AvailableSpots())
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _, _ := newEventFixture(t)

		title := "Renamed"
		_, err := svc.UpdateEvent(context.Background(), 7, &UpdateEventRequest{Title: &title})
		assert.ErrorIs(t, err, entity.ErrEventNotFound)
	})
}

// TestGetActiveEvents проверяет чтение каталога через кэш
func TestGetActiveEvents(t *testing.T) {
	svc, store, cache := newEventFixture(t)
	store.addEvent(futureEvent(10, 0, 100))
	store.addEvent(futureEvent(20, 5, 200))

	// Первый вызов читает хранилище и наполняет кэш
	events, err := svc.GetActiveEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, cache.sets)

	// Второй вызов обслуживается из кэша
	events, err = svc.GetActiveEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets)
}

// TestDeactivateEvent проверяет снятие с публикации и сброс кэша
func TestDeactivateEvent(t *testing.T) {
	svc, store, cache := newEventFixture(t)
	store.addEvent(futureEvent(10, 0, 100))

	require.NoError(t, svc.DeactivateEvent(context.Background(), 1))
	assert.Equal(t, entity.EventStatusInactive, store.eventSnapshot(1).Status)
	assert.Equal(t, 1, cache.invalidate)

	events, err := svc.GetActiveEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)

	err = svc.DeactivateEvent(context.Background(), 99)
	assert.ErrorIs(t, err, entity.ErrEventNotFound)
}

// TestListEvents проверяет полный список и фильтр по интервалу дат
func TestListEvents(t *testing.T) {
	svc, store, _ := newEventFixture(t)

	near := futureEvent(10, 0, 100)
	near.DateTime = time.Now().Add(24 * time.Hour)
	store.addEvent(near)

	far := futureEvent(20, 0, 200)
	far.DateTime = time.Now().Add(30 * 24 * time.Hour)
	far.Status = entity.EventStatusInactive
	store.addEvent(far)

	t.Run("no filter returns everything", func(t *testing.T) {
		events, err := svc.ListEvents(context.Background(), time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("date range filters", func(t *testing.T) {
		events, err := svc.ListEvents(context.Background(), time.Now(), time.Now().Add(48*time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, near.ID, events[0].ID)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		_, err := svc.ListEvents(context.Background(), time.Now().Add(time.Hour), time.Now())
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	})
}

// TestGetAvailability проверяет расчет остатка мест
func TestGetAvailability(t *testing.T) {
	svc, store, _ := newEventFixture(t)
	store.addEvent(futureEvent(10, 9, 500))

	available, err := svc.GetAvailability(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, available)

	_, err = svc.GetAvailability(context.Background(), 42)
	assert.ErrorIs(t, err, entity.ErrEventNotFound)
}

// TestGetEventStats проверяет сводку по активным бронированиям
func TestGetEventStats(t *testing.T) {
	store := newMemStore()
	store.addEvent(futureEvent(10, 0, 500))

	bookingSvc := NewBookingService(
		&fakeBookingRepo{store: store},
		&fakeEventRepo{store: store},
		nil,
		nil,
		&BookingOptions{ReserveRetries: 5, RetryBaseDelay: time.Millisecond, StoreTimeout: time.Second},
	)
	eventSvc := NewEventService(&fakeEventRepo{store: store}, &fakeBookingRepo{store: store}, nil, 20, time.Second)

	first, err := bookingSvc.Reserve(context.Background(), &ReserveRequest{EventID: 1, UserID: "user-1", Quantity: 2})
	require.NoError(t, err)
	_, err = bookingSvc.Reserve(context.Background(), &ReserveRequest{EventID: 1, UserID: "user-2", Quantity: 3})
	require.NoError(t, err)

	stats, err := eventSvc.GetEventStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveBookings)
	assert.Equal(t, 5, stats.BookedQuantity)
	assert.Equal(t, float64(2500), stats.Revenue)
	assert.Equal(t, 5, stats.AvailableSpots)

	// Отмененные бронирования в сводку не входят
	require.NoError(t, bookingSvc.Cancel(context.Background(), first.ID, "user-1"))

	stats, err = eventSvc.GetEventStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveBookings)
	assert.Equal(t, 3, stats.BookedQuantity)
	assert.Equal(t, float64(1500), stats.Revenue)
}
