package webhook

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyDeliveredEvent = "rentpay:webhook:delivered:"
	deliveredTTL      = 72 * time.Hour
)

// Deduper remembers provider event IDs that were already recorded.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// RedisDeduper keeps delivered event IDs in redis for the provider's retry window.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper returns nil when client is nil.
func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	if client == nil {
		return nil
	}
	return &RedisDeduper{client: client, ttl: deliveredTTL}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.client == nil {
		return false, nil
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, keyDeliveredEvent+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	if d == nil || d.client == nil {
		return nil
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return errors.New("event id is empty")
	}
	return d.client.SetNX(ctx, keyDeliveredEvent+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}
