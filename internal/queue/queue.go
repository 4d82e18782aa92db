package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

// DefaultCapacity is the per-agent queue ceiling.
const DefaultCapacity = 100

// ErrEmpty is returned by Pop when the agent has no pending tasks.
var ErrEmpty = errors.New("queue empty")

// TaskQueue is an ordered, capacity-bounded buffer of pending tasks per
// agent. Tasks are FIFO within a priority tier; Pop drains higher tiers
// first so high-priority work is never starved behind a backlog of
// medium/low tasks. All operations are safe for concurrent producers and
// consumers, and no two consumers can receive the same task.
type TaskQueue interface {
	// Push appends a single task. Fails with QueueCapacityExceededError if
	// the agent's queue is already at its ceiling.
	Push(ctx context.Context, agentID string, task *domain.Task) error
	// PushBatch appends all tasks or none. If the current depth plus the
	// batch would exceed the ceiling, it fails with
	// QueueCapacityExceededError without enqueuing anything.
	PushBatch(ctx context.Context, agentID string, tasks []*domain.Task) error
	// Pop removes and returns the oldest task in the highest non-empty
	// priority tier, or ErrEmpty.
	Pop(ctx context.Context, agentID string) (*domain.Task, error)
	// Depth returns the agent's total queue depth across priority tiers.
	Depth(ctx context.Context, agentID string) (int64, error)
	// Purge removes all pending tasks for an agent.
	Purge(ctx context.Context, agentID string) error
}

// BaseKey returns the agent's queue key root.
func BaseKey(agentID string) string {
	return fmt.Sprintf("agent:%s:tasks", agentID)
}

// tierKey returns the backing list key for one priority tier.
func tierKey(agentID string, p domain.Priority) string {
	return BaseKey(agentID) + ":" + string(p)
}

// tierKeys returns the backing list keys from most to least urgent.
func tierKeys(agentID string) []string {
	tiers := domain.Priorities()
	keys := make([]string, len(tiers))
	for i, p := range tiers {
		keys[i] = tierKey(agentID, p)
	}
	return keys
}
