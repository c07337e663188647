// Package dispatch implements the task queue: a Redis sorted set holds
// scheduled tasks keyed by their not-before time, and a worker delivers
// due tasks as HTTP POSTs to the internal surface. Delivery is
// at-least-once; every receiving handler must tolerate duplicates.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InternalTokenHeader carries the shared secret on queue-invoked requests.
const InternalTokenHeader = "X-Internal-Token"

const scheduledKey = "handreel:tasks:scheduled"

// Task is one queued unit of work. Path is relative to the internal
// surface base URL; Payload is delivered verbatim as the request body.
type Task struct {
	ID      uuid.UUID       `json:"id"`
	Path    string          `json:"path"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
}

// Dispatcher enqueues tasks for later HTTP delivery.
type Dispatcher interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration) error
}

// RedisDispatcher implements Dispatcher on a Redis sorted set. The
// member is the serialized task; the score is the earliest delivery
// time in unix milliseconds.
type RedisDispatcher struct {
	client *redis.Client
}

// NewRedisDispatcher creates a dispatcher from a Redis URL.
func NewRedisDispatcher(redisURL string) (*RedisDispatcher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisDispatcher{client: redis.NewClient(opts)}, nil
}

func (d *RedisDispatcher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	task := Task{
		ID:      uuid.New(),
		Path:    path,
		Payload: body,
	}
	return d.schedule(ctx, task, time.Now().Add(delay))
}

func (d *RedisDispatcher) schedule(ctx context.Context, task Task, notBefore time.Time) error {
	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	err = d.client.ZAdd(ctx, scheduledKey, redis.Z{
		Score:  float64(notBefore.UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule task: %w", err)
	}
	return nil
}

func (d *RedisDispatcher) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}

// Compile-time check that RedisDispatcher implements Dispatcher.
var _ Dispatcher = (*RedisDispatcher)(nil)
