package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

// DefaultRecordTTL bounds how long finished task records stay readable.
const DefaultRecordTTL = 7 * 24 * time.Hour

// TaskStore keeps live task snapshots in Redis under task:<task_id>, the
// fast lookup behind the task status API. The Postgres History is the
// durable copy; this one expires.
type TaskStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTaskStore connects to Redis at the given URL. A zero ttl uses
// DefaultRecordTTL.
func NewTaskStore(redisURL string, ttl time.Duration, logger *zap.Logger) (*TaskStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	logger.Info("Redis task store connected")
	return &TaskStore{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func taskKey(taskID string) string {
	return "task:" + taskID
}

// Record writes the task snapshot with the store's TTL.
func (s *TaskStore) Record(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.TaskID, err)
	}
	if err := s.rdb.Set(ctx, taskKey(task.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store task %s: %w", task.TaskID, err)
	}
	return nil
}

// Get returns a task snapshot by id.
func (s *TaskStore) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := s.rdb.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &domain.NotFoundError{Kind: "task", ID: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

// Close releases the Redis connection.
func (s *TaskStore) Close() error {
	return s.rdb.Close()
}
