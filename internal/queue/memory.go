package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

// MemoryQueue is an in-process TaskQueue with the same semantics as the
// Redis implementation. Used by tests and by degraded startup when Redis is
// unavailable. Tasks are held serialized so producers and consumers never
// share a Task instance.
type MemoryQueue struct {
	mu       sync.Mutex
	lists    map[string][][]byte
	capacity int64
}

// NewMemoryQueue returns an empty queue with the given per-agent capacity
// (DefaultCapacity if <= 0).
func NewMemoryQueue(capacity int64) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryQueue{
		lists:    make(map[string][][]byte),
		capacity: capacity,
	}
}

func (q *MemoryQueue) Push(ctx context.Context, agentID string, task *domain.Task) error {
	return q.PushBatch(ctx, agentID, []*domain.Task{task})
}

func (q *MemoryQueue) PushBatch(ctx context.Context, agentID string, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	payloads := make([][]byte, len(tasks))
	keys := make([]string, len(tasks))
	for i, t := range tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task %s: %w", t.TaskID, err)
		}
		payloads[i] = data
		keys[i] = tierKey(agentID, t.Priority)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	depth := q.depthLocked(agentID)
	if depth+int64(len(tasks)) > q.capacity {
		return &domain.QueueCapacityExceededError{
			QueueKey: BaseKey(agentID),
			Depth:    depth,
			Incoming: len(tasks),
			Capacity: q.capacity,
		}
	}
	for i, data := range payloads {
		q.lists[keys[i]] = append(q.lists[keys[i]], data)
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, agentID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, key := range tierKeys(agentID) {
		list := q.lists[key]
		if len(list) == 0 {
			continue
		}
		data := list[0]
		q.lists[key] = list[1:]

		var t domain.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("unmarshal task from %s: %w", key, err)
		}
		return &t, nil
	}
	return nil, ErrEmpty
}

func (q *MemoryQueue) Depth(ctx context.Context, agentID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked(agentID), nil
}

func (q *MemoryQueue) Purge(ctx context.Context, agentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, key := range tierKeys(agentID) {
		delete(q.lists, key)
	}
	return nil
}

func (q *MemoryQueue) depthLocked(agentID string) int64 {
	var total int64
	for _, key := range tierKeys(agentID) {
		total += int64(len(q.lists[key]))
	}
	return total
}
