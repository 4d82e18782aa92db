package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

// pushScript checks the combined depth of all priority tiers against the
// capacity ceiling and appends the whole batch, or nothing. KEYS holds the
// tier list keys, ARGV[1] the capacity, followed by (tier index, payload)
// pairs. Returns -1 when the batch would exceed capacity.
var pushScript = redis.NewScript(`
local cap = tonumber(ARGV[1])
local total = 0
for i = 1, #KEYS do
  total = total + redis.call('LLEN', KEYS[i])
end
local n = (#ARGV - 1) / 2
if total + n > cap then
  return -1
end
for i = 2, #ARGV, 2 do
  redis.call('RPUSH', KEYS[tonumber(ARGV[i])], ARGV[i+1])
end
return total + n
`)

// RedisQueue is a Redis-backed TaskQueue. Tasks are stored as JSON in one
// list per priority tier under agent:<id>:tasks:<priority>.
type RedisQueue struct {
	rdb      *redis.Client
	capacity int64
	logger   *zap.Logger
}

// NewRedisQueue connects to Redis and returns a queue with the given
// per-agent capacity (DefaultCapacity if <= 0).
func NewRedisQueue(redisURL string, capacity int64, logger *zap.Logger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisQueue{rdb: rdb, capacity: capacity, logger: logger}, nil
}

func (q *RedisQueue) Push(ctx context.Context, agentID string, task *domain.Task) error {
	return q.PushBatch(ctx, agentID, []*domain.Task{task})
}

func (q *RedisQueue) PushBatch(ctx context.Context, agentID string, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tiers := domain.Priorities()
	tierIndex := make(map[domain.Priority]int, len(tiers))
	for i, p := range tiers {
		tierIndex[p] = i + 1 // Lua arrays are 1-based
	}

	argv := make([]any, 0, 1+2*len(tasks))
	argv = append(argv, q.capacity)
	for _, t := range tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task %s: %w", t.TaskID, err)
		}
		idx, ok := tierIndex[t.Priority]
		if !ok {
			return &domain.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", t.Priority)}
		}
		argv = append(argv, strconv.Itoa(idx), string(data))
	}

	res, err := pushScript.Run(ctx, q.rdb, tierKeys(agentID), argv...).Int64()
	if err != nil {
		return fmt.Errorf("push batch for %s: %w", agentID, err)
	}
	if res < 0 {
		depth, _ := q.Depth(ctx, agentID)
		return &domain.QueueCapacityExceededError{
			QueueKey: BaseKey(agentID),
			Depth:    depth,
			Incoming: len(tasks),
			Capacity: q.capacity,
		}
	}
	q.logger.Debug("tasks enqueued",
		zap.String("agent", agentID),
		zap.Int("count", len(tasks)),
		zap.Int64("depth", res))
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, agentID string) (*domain.Task, error) {
	for _, key := range tierKeys(agentID) {
		data, err := q.rdb.LPop(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("pop from %s: %w", key, err)
		}
		var t domain.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("unmarshal task from %s: %w", key, err)
		}
		return &t, nil
	}
	return nil, ErrEmpty
}

func (q *RedisQueue) Depth(ctx context.Context, agentID string) (int64, error) {
	var total int64
	for _, key := range tierKeys(agentID) {
		n, err := q.rdb.LLen(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("llen %s: %w", key, err)
		}
		total += n
	}
	return total, nil
}

func (q *RedisQueue) Purge(ctx context.Context, agentID string) error {
	if err := q.rdb.Del(ctx, tierKeys(agentID)...).Err(); err != nil {
		return fmt.Errorf("purge queue for %s: %w", agentID, err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
