package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const DefaultEventTTL = 30 * time.Second

// RedisEventCache keeps JSON snapshots of events under "event:<id>" and the
// invalidation counter under "event:<id>:gen". A miss is reported as a nil
// event with a nil error.
type RedisEventCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisEventCache(client redis.Cmdable, ttl time.Duration) *RedisEventCache {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &RedisEventCache{client: client, ttl: ttl}
}

func eventKey(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}

func generationKey(eventID int64) string {
	return fmt.Sprintf("event:%d:gen", eventID)
}

type eventSnapshot struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Location    string             `json:"location,omitempty"`
	Capacity    int                `json:"capacity"`
	Available   int                `json:"available"`
	Status      domain.EventStatus `json:"status"`
	PriceCents  int64              `json:"price_cents"`
	Currency    string             `json:"currency,omitempty"`
	StartsAt    *time.Time         `json:"starts_at,omitempty"`
	EndsAt      *time.Time         `json:"ends_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Generation  uint64             `json:"generation"`
}

// Get reads the snapshot and the current generation in one round trip.
func (c *RedisEventCache) Get(ctx context.Context, eventID int64) (*domain.Event, uint64, error) {
	vals, err := c.client.MGet(ctx, eventKey(eventID), generationKey(eventID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("cache get event %d: %w", eventID, err)
	}

	var generation uint64
	if raw, ok := vals[1].(string); ok {
		generation, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("cache decode generation of event %d: %w", eventID, err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, generation, nil
	}
	var s eventSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, generation, fmt.Errorf("cache decode event %d: %w", eventID, err)
	}
	if s.Generation != generation {
		return nil, generation, nil
	}
	return &domain.Event{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Location:    s.Location,
		Capacity:    s.Capacity,
		Available:   s.Available,
		Status:      s.Status,
		PriceCents:  s.PriceCents,
		Currency:    s.Currency,
		StartsAt:    s.StartsAt,
		EndsAt:      s.EndsAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}, generation, nil
}

func (c *RedisEventCache) Set(ctx context.Context, event *domain.Event, generation uint64) error {
	raw, err := json.Marshal(eventSnapshot{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Capacity:    event.Capacity,
		Available:   event.Available,
		Status:      event.Status,
		PriceCents:  event.PriceCents,
		Currency:    event.Currency,
		StartsAt:    event.StartsAt,
		EndsAt:      event.EndsAt,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
		Generation:  generation,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, eventKey(event.ID), string(raw), c.ttl).Err()
}

// Invalidate advances the generation before dropping the snapshot, so a
// concurrent fill that read the old generation is never served.
func (c *RedisEventCache) Invalidate(ctx context.Context, eventID int64) error {
	if err := c.client.Incr(ctx, generationKey(eventID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate event %d: %w", eventID, err)
	}
	return c.client.Del(ctx, eventKey(eventID)).Err()
}
