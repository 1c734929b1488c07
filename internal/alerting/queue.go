package alerting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultQueueKey = "notification_tasks"

// Task is one outbound notification, serialized through Redis so a slow or
// unavailable gateway can never stall ping ingestion.
type Task struct {
	Channel    string    `json:"channel"` // "message" or "call"
	To         string    `json:"to"`
	Text       string    `json:"text"`
	Kind       string    `json:"kind"` // alert type that produced the task
	EventID    string    `json:"event_id"`
	OfficerID  string    `json:"officer_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

// RedisQueue is a plain list: LPUSH on the produce side, BRPOP in the
// dispatcher.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	b, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

// Dequeue blocks until a task is available or the context is cancelled.
func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	res, err := q.client.BRPop(ctx, 0, q.key).Result()
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return Task{}, err
	}
	return task, nil
}
