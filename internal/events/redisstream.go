package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStream = "mochifi:events"

// RedisLog stores the notification log in a Redis stream. Stream entry IDs
// are millisecond timestamps, which lines up with the subscribe-since cursor.
type RedisLog struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

type RedisLogOption func(*RedisLog)

func WithRedisStream(stream string) RedisLogOption {
	return func(l *RedisLog) {
		if stream != "" {
			l.stream = stream
		}
	}
}

func WithRedisLogger(logger *slog.Logger) RedisLogOption {
	return func(l *RedisLog) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewRedisLog(client *redis.Client, opts ...RedisLogOption) (*RedisLog, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	l := &RedisLog{
		client: client,
		stream: defaultStream,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *RedisLog) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		Values: map[string]any{"event": raw},
	}).Err()
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (l *RedisLog) Subscribe(ctx context.Context, since time.Time) (<-chan Event, error) {
	out := make(chan Event, 64)
	cursor := fmt.Sprintf("%d-0", since.UnixMilli())

	go func() {
		defer close(out)
		for ctx.Err() == nil {
			streams, err := l.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{l.stream, cursor},
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				l.logger.Warn("event stream read failed", "error", err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, stream := range streams {
				for _, msg := range stream.Messages {
					cursor = msg.ID
					raw, ok := msg.Values["event"].(string)
					if !ok {
						l.logger.Warn("malformed stream entry", "id", msg.ID)
						continue
					}
					var ev Event
					if err := json.Unmarshal([]byte(raw), &ev); err != nil {
						l.logger.Warn("undecodable stream entry", "id", msg.ID, "error", err)
						continue
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
