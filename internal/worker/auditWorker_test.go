package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventpro/booking-api/internal/entity"
	"github.com/eventpro/booking-api/internal/service"

	"github.com/stretchr/testify/assert"
)

type stubEventRepo struct {
	drifts     []*entity.CounterDrift
	driftCalls int32
}

func (r *stubEventRepo) Create(context.Context, *entity.Event) error        { return nil }
func (r *stubEventRepo) GetByID(context.Context, int64) (*entity.Event, error) {
	return nil, entity.ErrEventNotFound
}
func (r *stubEventRepo) GetActive(context.Context, int) ([]*entity.Event, error) { return nil, nil }
func (r *stubEventRepo) GetAll(context.Context) ([]*entity.Event, error)         { return nil, nil }
func (r *stubEventRepo) Update(context.Context, *entity.Event) error             { return nil }
func (r *stubEventRepo) SetStatus(context.Context, int64, entity.EventStatus) error {
	return nil
}
func (r *stubEventRepo) GetEventsByDateRange(context.Context, time.Time, time.Time) ([]*entity.Event, error) {
	return nil, nil
}

func (r *stubEventRepo) CounterDrift(context.Context) ([]*entity.CounterDrift, error) {
	atomic.AddInt32(&r.driftCalls, 1)
	return r.drifts, nil
}

type stubEventService struct {
	refreshCalls int32
}

func (s *stubEventService) GetActiveEvents(context.Context) ([]*entity.Event, error) {
	return nil, nil
}
func (s *stubEventService) GetEvent(context.Context, int64) (*entity.Event, error) {
	return nil, entity.ErrEventNotFound
}
func (s *stubEventService) GetAvailability(context.Context, int64) (int, error) { return 0, nil }
func (s *stubEventService) ListEvents(context.Context, time.Time, time.Time) ([]*entity.Event, error) {
	return nil, nil
}
func (s *stubEventService) CreateEvent(context.Context, *service.CreateEventRequest) (*entity.Event, error) {
	return nil, nil
}
func (s *stubEventService) UpdateEvent(context.Context, int64, *service.UpdateEventRequest) (*entity.Event, error) {
	return nil, nil
}
func (s *stubEventService) DeactivateEvent(context.Context, int64) error { return nil }
func (s *stubEventService) GetEventStats(context.Context, int64) (*entity.EventStats, error) {
	return nil, nil
}

func (s *stubEventService) RefreshCatalogCache(context.Context) error {
	atomic.AddInt32(&s.refreshCalls, 1)
	return nil
}

// TestAuditWorkerRunsOnSchedule проверяет, что воркер сверяет счетчики и
// прогревает кэш по тикеру и останавливается по отмене контекста
func TestAuditWorkerRunsOnSchedule(t *testing.T) {
	repo := &stubEventRepo{drifts: []*entity.CounterDrift{
		{EventID: 1, CurrentBookings: 5, ActiveQuantity: 4},
	}}
	svc := &stubEventService{}

	w := NewCapacityAuditWorker(repo, svc, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	// Даем воркеру отработать несколько тиков
	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}

	assert.GreaterOrEqual(t, atomic.LoadInt32(&repo.driftCalls), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&svc.refreshCalls), int32(2))
}
