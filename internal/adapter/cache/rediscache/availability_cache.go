package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

// versionTTL must stay far above the entry TTL: a counter that expires
// restarts at zero, and no entry for an old token may still be live then.
const versionTTL = 24 * time.Hour

// AvailabilityCache keeps rendered availability per route and travel date.
// The ledger stays authoritative. Entries are keyed by a generation token
// made of a route counter and a date counter; every ledger write bumps one of
// them, which orphans whatever was cached under the old token.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func Key(routeID uuid.UUID, date time.Time, version string) string {
	return fmt.Sprintf("availability:%s:%s:%s", routeID, date.Format(domain.DateLayout), version)
}

func RouteVersionKey(routeID uuid.UUID) string {
	return fmt.Sprintf("availability:%s:version", routeID)
}

func DateVersionKey(routeID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("availability:%s:%s:version", routeID, date.Format(domain.DateLayout))
}

func (c *AvailabilityCache) Version(ctx context.Context, routeID uuid.UUID, date time.Time) (string, error) {
	vals, err := c.client.MGet(ctx, RouteVersionKey(routeID), DateVersionKey(routeID, date)).Result()
	if err != nil {
		return "", err
	}

	counters := [2]string{"0", "0"}
	for i, v := range vals {
		if s, ok := v.(string); ok && i < len(counters) {
			counters[i] = s
		}
	}

	return counters[0] + "." + counters[1], nil
}

func (c *AvailabilityCache) Get(ctx context.Context, routeID uuid.UUID, date time.Time, version string) ([]domain.Availability, bool, error) {
	raw, err := c.client.Get(ctx, Key(routeID, date, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var items []domain.Availability
	if err := json.Unmarshal(raw, &items); err != nil {
		// A corrupt entry is treated as a miss and overwritten by the next Set.
		return nil, false, nil
	}

	return items, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, routeID uuid.UUID, date time.Time, version string, items []domain.Availability) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, Key(routeID, date, version), raw, c.ttl).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, routeID uuid.UUID, date time.Time) error {
	return c.bump(ctx, DateVersionKey(routeID, date))
}

// InvalidateRoute orphans every cached date of the route at once.
func (c *AvailabilityCache) InvalidateRoute(ctx context.Context, routeID uuid.UUID) error {
	return c.bump(ctx, RouteVersionKey(routeID))
}

func (c *AvailabilityCache) bump(ctx context.Context, key string) error {
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, versionTTL).Err()
}
