package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	repository "github.com/eventpro/booking-api/internal/database/postgres"
	"github.com/eventpro/booking-api/internal/entity"
)

// memStore — потокобезопасное in-memory хранилище, повторяющее
// транзакционную семантику постгресового слоя: резерв проходит только при
// совпадении версии, отмена и декремент счетчика выполняются как одно целое
type memStore struct {
	mu            sync.Mutex
	events        map[int64]*entity.Event
	bookings      map[int64]*entity.Booking
	users         map[string]*entity.User
	nextEventID   int64
	nextBookingID int64

	// alwaysConflict заставляет каждый Reserve завершаться конфликтом версий
	alwaysConflict bool
	reserveCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[int64]*entity.Event),
		bookings: make(map[int64]*entity.Booking),
		users:    make(map[string]*entity.User),
	}
}

func (s *memStore) addEvent(event *entity.Event) *entity.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	event.ID = s.nextEventID
	if event.Status == "" {
		event.Status = entity.EventStatusActive
	}
	s.events[event.ID] = event
	return event
}

func (s *memStore) eventSnapshot(id int64) entity.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

type fakeEventRepo struct {
	store *memStore
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.Event) error {
	r.store.addEvent(event)
	return nil
}

func (r *fakeEventRepo) GetByID(_ context.Context, id int64) (*entity.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	copy := *event
	return &copy, nil
}

func (r *fakeEventRepo) GetActive(_ context.Context, limit int) ([]*entity.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var events []*entity.Event
	for _, event := range r.store.events {
		if event.Status == entity.EventStatusActive {
			copy := *event
			events = append(events, &copy)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].DateTime.Before(events[j].DateTime) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *fakeEventRepo) GetAll(_ context.Context) ([]*entity.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var events []*entity.Event
	for _, event := range r.store.events {
		copy := *event
		events = append(events, &copy)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].DateTime.Before(events[j].DateTime) })
	return events, nil
}

func (r *fakeEventRepo) Update(_ context.Context, event *entity.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.events[event.ID]
	if !ok || event.Capacity < stored.CurrentBookings {
		return entity.ErrEventNotFound
	}
	event.CurrentBookings = stored.CurrentBookings
	event.Version = stored.Version + 1
	copy := *event
	r.store.events[event.ID] = &copy
	return nil
}

func (r *fakeEventRepo) SetStatus(_ context.Context, id int64, status entity.EventStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.events[id]
	if !ok {
		return entity.ErrEventNotFound
	}
	event.Status = status
	return nil
}

func (r *fakeEventRepo) GetEventsByDateRange(_ context.Context, from, to time.Time) ([]*entity.Event, error) {
	events, _ := r.GetAll(context.Background())
	var filtered []*entity.Event
	for _, event := range events {
		if !event.DateTime.Before(from) && !event.DateTime.After(to) {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

func (r *fakeEventRepo) CounterDrift(_ context.Context) ([]*entity.CounterDrift, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var drifts []*entity.CounterDrift
	for _, event := range r.store.events {
		active := 0
		for _, booking := range r.store.bookings {
			if booking.EventID == event.ID && booking.Status == entity.BookingStatusActive {
				active += booking.Quantity
			}
		}
		if active != event.CurrentBookings {
			drifts = append(drifts, &entity.CounterDrift{
				EventID:         event.ID,
				CurrentBookings: event.CurrentBookings,
				ActiveQuantity:  active,
			})
		}
	}
	return drifts, nil
}

type fakeBookingRepo struct {
	store *memStore
}

func (r *fakeBookingRepo) Reserve(_ context.Context, booking *entity.Booking, expectedVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.reserveCalls++
	if r.store.alwaysConflict {
		return entity.ErrContention
	}

	if booking.IdempotencyKey != "" {
		for _, existing := range r.store.bookings {
			if existing.UserID == booking.UserID && existing.IdempotencyKey == booking.IdempotencyKey {
				return repository.ErrDuplicateIdempotencyKey
			}
		}
	}

	event, ok := r.store.events[booking.EventID]
	if !ok {
		return entity.ErrEventNotFound
	}
	if event.Version != expectedVersion || event.CurrentBookings+booking.Quantity > event.Capacity {
		return entity.ErrContention
	}

	event.CurrentBookings += booking.Quantity
	event.Version++

	r.store.nextBookingID++
	booking.ID = r.store.nextBookingID
	booking.CreatedAt = time.Now()
	copy := *booking
	r.store.bookings[booking.ID] = &copy
	return nil
}

func (r *fakeBookingRepo) Cancel(_ context.Context, bookingID int64, actingUserID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	booking, ok := r.store.bookings[bookingID]
	if !ok {
		return false, entity.ErrBookingNotFound
	}
	if booking.UserID != actingUserID {
		return false, entity.ErrUnauthorized
	}
	if booking.Status == entity.BookingStatusCancelled {
		return false, nil
	}

	event, ok := r.store.events[booking.EventID]
	if !ok {
		return false, entity.ErrEventNotFound
	}
	if event.CurrentBookings-booking.Quantity < 0 {
		return false, entity.ErrInvariantViolation
	}

	event.CurrentBookings -= booking.Quantity
	event.Version++
	booking.Status = entity.BookingStatusCancelled
	return true, nil
}

func (r *fakeBookingRepo) GetByID(_ context.Context, id int64) (*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	booking, ok := r.store.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	copy := *booking
	return &copy, nil
}

func (r *fakeBookingRepo) GetByIdempotencyKey(_ context.Context, userID, key string) (*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, booking := range r.store.bookings {
		if booking.UserID == userID && booking.IdempotencyKey == key {
			copy := *booking
			return &copy, nil
		}
	}
	return nil, entity.ErrBookingNotFound
}

func (r *fakeBookingRepo) GetByUserID(_ context.Context, userID string) ([]*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var bookings []*entity.Booking
	for _, booking := range r.store.bookings {
		if booking.UserID == userID {
			copy := *booking
			bookings = append(bookings, &copy)
		}
	}
	return bookings, nil
}

func (r *fakeBookingRepo) GetByUserIDWithEvents(ctx context.Context, userID string) ([]*entity.BookingWithEvent, error) {
	bookings, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []*entity.BookingWithEvent
	for _, booking := range bookings {
		item := &entity.BookingWithEvent{Booking: *booking}
		if event, ok := r.store.events[booking.EventID]; ok {
			copy := *event
			item.Event = &copy
		}
		result = append(result, item)
	}
	return result, nil
}

func (r *fakeBookingRepo) GetByEventID(_ context.Context, eventID int64) ([]*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var bookings []*entity.Booking
	for _, booking := range r.store.bookings {
		if booking.EventID == eventID {
			copy := *booking
			bookings = append(bookings, &copy)
		}
	}
	return bookings, nil
}

func (r *fakeBookingRepo) GetAll(_ context.Context) ([]*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var bookings []*entity.Booking
	for _, booking := range r.store.bookings {
		copy := *booking
		bookings = append(bookings, &copy)
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	return bookings, nil
}

func (r *fakeBookingRepo) GetRecentBookings(ctx context.Context, limit int) ([]*entity.Booking, error) {
	bookings, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(bookings) > limit {
		bookings = bookings[len(bookings)-limit:]
	}
	return bookings, nil
}

func (r *fakeBookingRepo) GetEventStats(_ context.Context, eventID int64) (*entity.EventStats, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.events[eventID]
	if !ok {
		return nil, entity.ErrEventNotFound
	}

	stats := &entity.EventStats{EventID: eventID, AvailableSpots: event.AvailableSpots()}
	for _, booking := range r.store.bookings {
		if booking.EventID == eventID && booking.Status == entity.BookingStatusActive {
			stats.ActiveBookings++
			stats.BookedQuantity += booking.Quantity
			stats.Revenue += booking.TotalPrice
		}
	}
	if event.Capacity > 0 {
		stats.Utilization = float64(stats.BookedQuantity) / float64(event.Capacity)
	}
	return stats, nil
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Ensure(_ context.Context, user *entity.User) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.users[user.ID]; ok {
		existing.Email = user.Email
		existing.DisplayName = user.DisplayName
		copy := *existing
		return &copy, nil
	}

	created := &entity.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		UserRole:    entity.UserRoleUser,
		CreatedAt:   time.Now(),
	}
	r.store.users[user.ID] = created
	copy := *created
	return &copy, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	copy := *user
	return &copy, nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, id string, role entity.UserRole) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return entity.ErrUserNotFound
	}
	user.UserRole = role
	return nil
}

func (r *fakeUserRepo) GetAll(_ context.Context) ([]*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var users []*entity.User
	for _, user := range r.store.users {
		copy := *user
		users = append(users, &copy)
	}
	return users, nil
}

// fakeCache — кэш каталога в памяти для проверки cache-first чтения
type fakeCache struct {
	mu         sync.Mutex
	events     []*entity.Event
	populated  bool
	hits       int
	sets       int
	invalidate int
}

func (c *fakeCache) GetActiveEvents(_ context.Context) ([]*entity.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.populated {
		return nil, fmt.Errorf("cache miss")
	}
	c.hits++
	return c.events, nil
}

func (c *fakeCache) SetActiveEvents(_ context.Context, events []*entity.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = events
	c.populated = true
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = nil
	c.populated = false
	c.invalidate++
	return nil
}

// fakeDeduper хранит ключи идемпотентности в памяти
type fakeDeduper struct {
	mu   sync.Mutex
	keys map[string]int64
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{keys: make(map[string]int64)}
}

func (d *fakeDeduper) Lookup(_ context.Context, userID, key string) (int64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.keys[userID+":"+key]
	return id, ok, nil
}

func (d *fakeDeduper) Store(_ context.Context, userID, key string, bookingID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.keys[userID+":"+key] = bookingID
	return nil
}
