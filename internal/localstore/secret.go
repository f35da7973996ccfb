package localstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mochifi/pkg/sentinel"
)

// SecretSource fetches the store encryption secret from a remote secret
// store at process start. Unavailability is not fatal: the daemon falls open
// to "no wallet restored" and runs on an in-memory store.
type SecretSource interface {
	AppSecret(ctx context.Context) (string, error)
}

// StaticSecret serves a fixed secret, for tests and development.
type StaticSecret string

func (s StaticSecret) AppSecret(context.Context) (string, error) {
	if s == "" {
		return "", sentinel.ErrNotFound
	}
	return string(s), nil
}

// RedisSecret reads the app secret from a Redis key.
type RedisSecret struct {
	client *redis.Client
	key    string
}

func NewRedisSecret(client *redis.Client, key string) *RedisSecret {
	return &RedisSecret{client: client, key: key}
}

func (r *RedisSecret) AppSecret(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetch app secret: %w", err)
	}
	return v, nil
}
