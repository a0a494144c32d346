// Package idempotency records completed reservation keys in Redis so a
// retried Reserve call returns the booking created by the first attempt
// instead of booking twice.
package idempotency

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{client: client, ttl: ttl}
}

func (d *Deduper) key(userID, key string) string {
	return fmt.Sprintf("idem:%s:%s", userID, key)
}

// Lookup returns the booking ID recorded for the key, if any.
func (d *Deduper) Lookup(ctx context.Context, userID, key string) (int64, bool, error) {
	val, err := d.client.Get(ctx, d.key(userID, key)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	bookingID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: malformed value %q", val)
	}
	return bookingID, true, nil
}

// Store records the booking created for the key. Losing the record is safe:
// the unique (user_id, idempotency_key) index in the store remains the
// authoritative guard.
func (d *Deduper) Store(ctx context.Context, userID, key string, bookingID int64) error {
	return d.client.Set(ctx, d.key(userID, key), bookingID, d.ttl).Err()
}

// Forget drops a recorded key so the caller may retry the reservation.
func (d *Deduper) Forget(ctx context.Context, userID, key string) error {
	return d.client.Del(ctx, d.key(userID, key)).Err()
}
