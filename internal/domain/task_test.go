package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestNewTaskDefaults(t *testing.T) {
	task, err := NewTask(TypeGenerateCaption, "", map[string]any{"goal_description": "Test goal"})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if task.TaskID == "" {
		t.Error("task_id should be auto-generated")
	}
	if task.Priority != PriorityMedium {
		t.Errorf("default priority = %q, want medium", task.Priority)
	}
	if task.Status != StatusPending {
		t.Errorf("default status = %q, want pending", task.Status)
	}
	if task.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", task.RetryCount)
	}
	if task.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", task.MaxRetries)
	}
	if task.EstimatedCostUSD != 0.0 {
		t.Errorf("estimated_cost_usd = %f, want 0", task.EstimatedCostUSD)
	}
	if task.ActualCostUSD != nil {
		t.Error("actual_cost_usd should be nil until completion")
	}
	if task.StartedAt != nil || task.CompletedAt != nil {
		t.Error("started_at/completed_at should be nil on creation")
	}
	if task.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestNewTaskRejectsInvalidEnums(t *testing.T) {
	ctx := map[string]any{"goal_description": "Test"}

	if _, err := NewTask("invalid_type", "", ctx); err == nil {
		t.Error("expected error for unknown task type")
	} else {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %T", err)
		}
	}

	if _, err := NewTask(TypeGenerateCaption, "critical", ctx); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestNewTaskRequiresContext(t *testing.T) {
	if _, err := NewTask(TypeGenerateCaption, "", nil); err == nil {
		t.Fatal("expected error for empty context")
	}
	var ve *ValidationError
	_, err := NewTask(TypeGenerateCaption, "", map[string]any{})
	if !errors.As(err, &ve) || ve.Field != "context" {
		t.Errorf("expected context ValidationError, got %v", err)
	}
}

func TestValidateRejectsUnknownStatus(t *testing.T) {
	task, err := NewTask(TypeReplyComment, PriorityLow, map[string]any{"comment_id": "c1"})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	task.Status = "running"
	if err := task.Validate(); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestTaskLifecycle(t *testing.T) {
	task, err := NewTask(TypeAnalyzeTrend, PriorityHigh, map[string]any{"niche": "fashion"})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	if err := task.Claim("worker-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if task.Status != StatusInProgress || task.StartedAt == nil || task.AssignedWorkerID != "worker-1" {
		t.Errorf("claim did not set in_progress state: %+v", task)
	}

	if err := task.Complete(0.05); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if task.Status != StatusComplete || task.CompletedAt == nil {
		t.Error("complete did not set terminal state")
	}
	if task.ActualCostUSD == nil || *task.ActualCostUSD != 0.05 {
		t.Errorf("actual_cost_usd = %v, want 0.05", task.ActualCostUSD)
	}

	// No transitions out of a terminal state.
	if err := task.Claim("worker-2"); err == nil {
		t.Error("expected error claiming a complete task")
	}
}

func TestReleaseRevertsToPendingWithoutRetry(t *testing.T) {
	task, err := NewTask(TypeGenerateCaption, "", map[string]any{"goal_description": "Test"})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := task.Claim("worker-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if err := task.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if task.Status != StatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.AssignedWorkerID != "" {
		t.Error("release should clear assigned worker")
	}
	if task.RetryCount != 0 {
		t.Errorf("retry_count = %d, release must not count a retry", task.RetryCount)
	}

	// Only an in-progress task can be released.
	if err := task.Complete(0.01); err == nil {
		t.Error("pending task must not complete directly")
	}
	if err := task.Claim("worker-2"); err != nil {
		t.Fatalf("re-Claim: %v", err)
	}
	if err := task.Complete(0.01); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := task.Release(); err == nil {
		t.Error("expected error releasing a complete task")
	}
}

func TestRequeueExhaustsRetries(t *testing.T) {
	task, err := NewTask(TypeCreateImage, "", map[string]any{"prompt": "test"})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if err := task.Claim("worker-1"); err != nil {
			t.Fatalf("Claim attempt %d: %v", attempt, err)
		}
		again, err := task.Requeue()
		if err != nil {
			t.Fatalf("Requeue attempt %d: %v", attempt, err)
		}
		if !again {
			t.Fatalf("attempt %d should leave retries remaining", attempt)
		}
		if task.Status != StatusPending {
			t.Fatalf("status = %q after requeue, want pending", task.Status)
		}
		if task.AssignedWorkerID != "" {
			t.Error("requeue should clear assigned worker")
		}
	}

	// Third transient failure exhausts max_retries=3.
	if err := task.Claim("worker-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	again, err := task.Requeue()
	if err != nil {
		t.Fatalf("final Requeue: %v", err)
	}
	if again {
		t.Error("retries should be exhausted")
	}
	if task.Status != StatusFailed {
		t.Errorf("status = %q, want failed", task.Status)
	}
	if task.RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3", task.RetryCount)
	}
	if task.ActualCostUSD == nil {
		t.Error("terminal task should carry actual_cost_usd")
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	task, err := NewTask(TypePublishContent, PriorityHigh, map[string]any{
		"goal_description": "Publish launch post",
		"platforms":        []any{"twitter", "instagram"},
	})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	task.EstimatedCostUSD = 0.10
	if err := task.Claim("worker-9"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := task.Complete(0.08); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Task
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(task, &decoded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, *task)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusPending:    false,
		StatusInProgress: false,
		StatusComplete:   true,
		StatusFailed:     true,
	}
	for s, want := range cases {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}
