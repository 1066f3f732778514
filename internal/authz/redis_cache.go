package authz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache guarda as capabilities em "authz:caps:{userID}" como JSON
type RedisCache struct{ r *redis.Client }

func NewRedisCache(r *redis.Client) *RedisCache { return &RedisCache{r: r} }

func keyCaps(userID string) string { return "authz:caps:" + userID }

func (c *RedisCache) Get(ctx context.Context, userID string) ([]string, bool, error) {
	b, err := c.r.Get(ctx, keyCaps(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var caps []string
	if err := json.Unmarshal(b, &caps); err != nil {
		return nil, false, err
	}
	return caps, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, caps []string, ttl time.Duration) error {
	b, _ := json.Marshal(caps)
	return c.r.Set(ctx, keyCaps(userID), b, ttl).Err()
}

// Invalidate remove o cache do usuário (após Grant)
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	return c.r.Del(ctx, keyCaps(userID)).Err()
}
