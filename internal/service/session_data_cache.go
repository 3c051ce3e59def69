package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"
)

// SessionDataCache fronts the session data projection with redis. A nil
// client degrades to a pass-through cache so the service still works when
// redis is not configured.
type SessionDataCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewSessionDataCache(client redis.UniversalClient, prefix string, ttl time.Duration) *SessionDataCache {
	if prefix == "" {
		prefix = "session_data"
	}
	return &SessionDataCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *SessionDataCache) Get(ctx context.Context, sessionUUID string) (*domain.SessionData, error) {
	if c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, c.key(sessionUUID)).Result()
	if err == redis.Nil {
		observability.RecordCacheLookup(ctx, "session_data", "miss")
		return nil, nil
	}
	if err != nil {
		observability.RecordCacheLookup(ctx, "session_data", "error")
		return nil, err
	}
	var data domain.SessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// A corrupt entry is treated as a miss and overwritten by the
		// next Set.
		observability.RecordCacheLookup(ctx, "session_data", "corrupt")
		return nil, nil
	}
	observability.RecordCacheLookup(ctx, "session_data", "hit")
	return &data, nil
}

func (c *SessionDataCache) Set(ctx context.Context, data *domain.SessionData) error {
	if c.client == nil || c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(data.SessionUUID), raw, c.ttl).Err()
}

func (c *SessionDataCache) Invalidate(ctx context.Context, sessionUUID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(sessionUUID)).Err()
}

func (c *SessionDataCache) key(sessionUUID string) string {
	return fmt.Sprintf("%s__%s", c.prefix, sessionUUID)
}
