package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eventpro/booking-api/internal/entity"

	"github.com/go-redis/redis/v8"
)

const activeEventsKey = "catalog:active_events"

// CacheRepository keeps the active-event catalog in Redis. Availability
// numbers inside it are advisory: reservations always validate against the
// store, so a stale cache can never oversell.
type CacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheRepository(client *redis.Client, ttl time.Duration) *CacheRepository {
	return &CacheRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *CacheRepository) SetActiveEvents(ctx context.Context, events []*entity.Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, activeEventsKey, data, r.ttl).Err()
}

func (r *CacheRepository) GetActiveEvents(ctx context.Context) ([]*entity.Event, error) {
	data, err := r.client.Get(ctx, activeEventsKey).Result()
	if err != nil {
		return nil, err
	}

	var events []*entity.Event
	err = json.Unmarshal([]byte(data), &events)
	if err != nil {
		return nil, err
	}

	return events, nil
}

// Invalidate drops the cached catalog. Called after any write that changes
// event fields or availability.
func (r *CacheRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, activeEventsKey).Err()
}
