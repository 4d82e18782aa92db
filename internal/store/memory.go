package store

import (
	"context"
	"sync"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

// Recorder is anything that persists task snapshots.
type Recorder interface {
	Record(ctx context.Context, task *domain.Task) error
}

// MultiRecorder fans each snapshot out to every backing recorder, stopping
// at the first failure.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, task *domain.Task) error {
	for _, r := range m {
		if err := r.Record(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// MemoryTaskStore is the in-process fallback when Redis is unavailable.
// Same read/write surface as TaskStore, no expiry.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

// NewMemoryTaskStore returns an empty store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*domain.Task)}
}

func (s *MemoryTaskStore) Record(ctx context.Context, task *domain.Task) error {
	copied := *task
	s.mu.Lock()
	s.tasks[task.TaskID] = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryTaskStore) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	s.mu.RLock()
	task, ok := s.tasks[taskID]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "task", ID: taskID}
	}
	copied := *task
	return &copied, nil
}
