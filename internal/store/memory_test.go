package store

import (
	"context"
	"errors"
	"testing"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

func TestMemoryTaskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTaskStore()

	task, err := domain.NewTask(domain.TypeGenerateCaption, "", map[string]any{"goal_description": "g"})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := s.Record(ctx, task); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Get(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TaskID != task.TaskID || got.Status != task.Status {
		t.Errorf("got %+v, want %+v", got, task)
	}

	// Mutating the original after recording must not leak into the store.
	task.Status = domain.StatusFailed
	got, _ = s.Get(ctx, task.TaskID)
	if got.Status == domain.StatusFailed {
		t.Error("stored snapshot aliases the caller's task")
	}
}

func TestMemoryTaskStoreNotFound(t *testing.T) {
	s := NewMemoryTaskStore()
	_, err := s.Get(context.Background(), "missing")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMultiRecorderFansOut(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemoryTaskStore(), NewMemoryTaskStore()
	rec := MultiRecorder{a, b}

	task, err := domain.NewTask(domain.TypeAnalyzeTrend, "", map[string]any{"goal_description": "g"})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := rec.Record(ctx, task); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := a.Get(ctx, task.TaskID); err != nil {
		t.Errorf("first recorder missed the task: %v", err)
	}
	if _, err := b.Get(ctx, task.TaskID); err != nil {
		t.Errorf("second recorder missed the task: %v", err)
	}
}
