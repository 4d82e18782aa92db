package planner

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/queue"
)

func newTestPlanner(t *testing.T, budgetUSD float64) (*Planner, *queue.MemoryQueue, *Budget) {
	t.Helper()
	q := queue.NewMemoryQueue(queue.DefaultCapacity)
	b := NewBudget(budgetUSD)
	return NewPlanner("agent-1", q, b, zap.NewNop()), q, b
}

func TestDecomposeBasics(t *testing.T) {
	p, _, _ := newTestPlanner(t, 10)

	tasks, err := p.Decompose("Write a caption about summer fashion")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(tasks) == 0 {
		t.Fatal("non-empty goal must yield at least one task")
	}

	seen := make(map[string]bool)
	for _, task := range tasks {
		if seen[task.TaskID] {
			t.Errorf("duplicate task_id %s", task.TaskID)
		}
		seen[task.TaskID] = true
		if task.Context["goal_description"] != "Write a caption about summer fashion" {
			t.Errorf("context missing goal_description: %v", task.Context)
		}
		if task.Status != domain.StatusPending {
			t.Errorf("status = %q, want pending", task.Status)
		}
		if task.EstimatedCostUSD < 0 {
			t.Errorf("negative estimate %v", task.EstimatedCostUSD)
		}
	}
}

func TestDecomposeEmptyGoal(t *testing.T) {
	p, _, _ := newTestPlanner(t, 10)
	for _, goal := range []string{"", "   ", "\t\n"} {
		_, err := p.Decompose(goal)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Decompose(%q): expected ValidationError, got %v", goal, err)
		}
	}
}

func TestDecomposeUrgentPriority(t *testing.T) {
	p, _, _ := newTestPlanner(t, 10)
	tasks, err := p.Decompose("URGENT: post a caption about the outage")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	high := false
	for _, task := range tasks {
		if task.Priority == domain.PriorityHigh {
			high = true
		}
	}
	if !high {
		t.Error("URGENT goal produced no high-priority task")
	}
}

func TestDecomposeMultiArtifact(t *testing.T) {
	p, _, _ := newTestPlanner(t, 10)
	tasks, err := p.Decompose("Create an image and a caption for the product launch")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	types := make(map[domain.TaskType]bool)
	for _, task := range tasks {
		types[task.TaskType] = true
	}
	if !types[domain.TypeCreateImage] || !types[domain.TypeGenerateCaption] {
		t.Errorf("types = %v, want create_image and generate_caption", types)
	}
}

func TestDecomposeLeadingCount(t *testing.T) {
	p, _, _ := newTestPlanner(t, 10)
	tasks, err := p.Decompose("3 captions about the new collection")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	captions := 0
	for _, task := range tasks {
		if task.TaskType == domain.TypeGenerateCaption {
			captions++
		}
	}
	if captions != 3 {
		t.Errorf("caption tasks = %d, want 3", captions)
	}
}

func TestDecomposeFitsBudget(t *testing.T) {
	// Budget covers the caption but not the video.
	p, _, b := newTestPlanner(t, 0.02)
	tasks, err := p.Decompose("Make a video and a caption about the event")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	total := 0.0
	for _, task := range tasks {
		total += task.EstimatedCostUSD
		if task.TaskType == domain.TypeCreateVideo {
			t.Error("video task should be dropped to fit budget")
		}
	}
	if total > b.Remaining() {
		t.Errorf("total estimate %v exceeds remaining budget %v", total, b.Remaining())
	}
	if len(tasks) == 0 {
		t.Error("scope reduction dropped everything")
	}
}

func TestDecomposeBudgetExhausted(t *testing.T) {
	p, _, _ := newTestPlanner(t, 0.001)
	if _, err := p.Decompose("Make a video about the event"); err == nil {
		t.Fatal("expected error when no task fits the remaining budget")
	}
}

func TestDecomposeAndQueue(t *testing.T) {
	p, q, b := newTestPlanner(t, 10)
	ctx := context.Background()

	n, err := p.DecomposeAndQueue(ctx, "Create an image and a caption")
	if err != nil {
		t.Fatalf("DecomposeAndQueue: %v", err)
	}
	depth, _ := q.Depth(ctx, "agent-1")
	if int(depth) != n {
		t.Errorf("depth = %d, queued count = %d", depth, n)
	}
	if b.Remaining() >= 10 {
		t.Error("budget not reserved after successful enqueue")
	}
}

func TestDecomposeAndQueueCapacityRejection(t *testing.T) {
	p, q, b := newTestPlanner(t, 10)
	ctx := context.Background()

	// Fill the queue to one below the ceiling so a two-task batch cannot fit.
	for i := 0; i < queue.DefaultCapacity-1; i++ {
		task, err := domain.NewTask(domain.TypeReplyComment, "", map[string]any{"goal_description": "filler"})
		if err != nil {
			t.Fatalf("NewTask: %v", err)
		}
		if err := q.Push(ctx, "agent-1", task); err != nil {
			t.Fatalf("fill push %d: %v", i, err)
		}
	}
	before, _ := q.Depth(ctx, "agent-1")
	remainingBefore := b.Remaining()

	_, err := p.DecomposeAndQueue(ctx, "Create an image and a caption")
	var qce *domain.QueueCapacityExceededError
	if !errors.As(err, &qce) {
		t.Fatalf("expected QueueCapacityExceededError, got %v", err)
	}

	after, _ := q.Depth(ctx, "agent-1")
	if after != before {
		t.Errorf("depth changed %d → %d, rejected batch must not partially enqueue", before, after)
	}
	if b.Remaining() != remainingBefore {
		t.Errorf("budget remaining changed %v → %v, reservation must be released", remainingBefore, b.Remaining())
	}
}

func TestBudgetConcurrentReserve(t *testing.T) {
	b := NewBudget(1.0)
	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() { done <- b.Reserve(0.1) }()
	}
	granted := 0
	for i := 0; i < 20; i++ {
		if err := <-done; err == nil {
			granted++
		}
	}
	if granted != 10 {
		t.Errorf("granted = %d reservations of 0.1 against 1.0, want 10", granted)
	}
	if rem := b.Remaining(); rem > 1e-9 {
		t.Errorf("remaining = %v, want 0", rem)
	}
}

func TestBudgetReleaseClamps(t *testing.T) {
	b := NewBudget(1.0)
	if err := b.Reserve(0.5); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	b.Release(2.0)
	if rem := b.Remaining(); rem != 1.0 {
		t.Errorf("remaining = %v, want ceiling after over-release", rem)
	}
}
