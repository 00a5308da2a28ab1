package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAuths keeps auth tokens in Redis with a TTL, so stale sessions
// expire without a reaper.
type RedisAuths struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAuths(redisURL string, ttl time.Duration) (*RedisAuths, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisAuths{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisAuths) Close() error { return r.rdb.Close() }

func authKey(token string) string { return "auth:token:" + token }

func (r *RedisAuths) CreateAuth(ctx context.Context, username string) (string, error) {
	token := NewToken()
	if err := r.rdb.Set(ctx, authKey(token), username, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("set auth: %w", err)
	}
	return token, nil
}

func (r *RedisAuths) GetAuth(ctx context.Context, token string) (string, error) {
	username, err := r.rdb.Get(ctx, authKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get auth: %w", err)
	}
	// Sliding expiry: an active session keeps its token alive.
	_ = r.rdb.Expire(ctx, authKey(token), r.ttl).Err()
	return username, nil
}

func (r *RedisAuths) DeleteAuth(ctx context.Context, token string) error {
	n, err := r.rdb.Del(ctx, authKey(token)).Result()
	if err != nil {
		return fmt.Errorf("delete auth: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisAuths) Clear(ctx context.Context) error {
	keys, err := r.rdb.Keys(ctx, authKey("*")).Result()
	if err != nil {
		return fmt.Errorf("list auth keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}
