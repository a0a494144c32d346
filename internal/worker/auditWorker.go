package worker

import (
	"context"
	"time"

	repository "github.com/eventpro/booking-api/internal/database/postgres"
	"github.com/eventpro/booking-api/internal/service"

	"github.com/sirupsen/logrus"
)

// CapacityAuditWorker периодически сверяет счетчики мест с фактическими
// бронированиями и прогревает кэш каталога
type CapacityAuditWorker struct {
	eventRepo    repository.EventRepository
	eventService service.EventService
	interval     time.Duration
}

func NewCapacityAuditWorker(eventRepo repository.EventRepository, eventService service.EventService, interval time.Duration) *CapacityAuditWorker {
	return &CapacityAuditWorker{
		eventRepo:    eventRepo,
		eventService: eventService,
		interval:     interval,
	}
}

func (w *CapacityAuditWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Capacity audit worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Capacity audit worker stopped")
			return
		case <-ticker.C:
			w.auditCounters(ctx)
			w.refreshCatalog(ctx)
		}
	}
}

// auditCounters сверяет current_bookings с суммой активных бронирований
func (w *CapacityAuditWorker) auditCounters(ctx context.Context) {
	drifts, err := w.eventRepo.CounterDrift(ctx)
	if err != nil {
		logrus.Errorf("Capacity audit failed: %v", err)
		return
	}

	if len(drifts) == 0 {
		logrus.Debug("Capacity audit completed: no drift detected")
		return
	}

	// Рассинхронизация счетчика означает нарушение инварианта,
	// воркер только сообщает о ней и никогда не правит данные сам
	for _, drift := range drifts {
		logrus.WithFields(logrus.Fields{
			"event_id":         drift.EventID,
			"current_bookings": drift.CurrentBookings,
			"active_quantity":  drift.ActiveQuantity,
		}).Error("Capacity counter drift detected")
	}

	logrus.Warnf("Capacity audit completed: %d events with counter drift", len(drifts))
}

// refreshCatalog прогревает кэш активных мероприятий
func (w *CapacityAuditWorker) refreshCatalog(ctx context.Context) {
	if err := w.eventService.RefreshCatalogCache(ctx); err != nil {
		logrus.Errorf("Failed to refresh catalog cache: %v", err)
		return
	}

	logrus.Debug("Catalog cache refreshed")
}
