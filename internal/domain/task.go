package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the kind of work a task represents.
type TaskType string

const (
	TypeGenerateCaption TaskType = "generate_caption"
	TypeCreateImage     TaskType = "create_image"
	TypeCreateVideo     TaskType = "create_video"
	TypeAnalyzeTrend    TaskType = "analyze_trend"
	TypeReplyComment    TaskType = "reply_comment"
	TypePublishContent  TaskType = "publish_content"
)

var validTaskTypes = map[TaskType]struct{}{
	TypeGenerateCaption: {},
	TypeCreateImage:     {},
	TypeCreateVideo:     {},
	TypeAnalyzeTrend:    {},
	TypeReplyComment:    {},
	TypePublishContent:  {},
}

// Priority orders tasks within an agent's queue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var validPriorities = map[Priority]struct{}{
	PriorityHigh:   {},
	PriorityMedium: {},
	PriorityLow:    {},
}

// Priorities lists all priority tiers from most to least urgent.
// Workers drain tiers in this order.
func Priorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// Status tracks a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

var validStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusComplete:   {},
	StatusFailed:     {},
}

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// validTransitions defines allowed state transitions. Pending→InProgress on
// claim, InProgress→Complete/Failed after execution, and InProgress→Pending
// when a retryable failure puts the task back on the queue.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusComplete, StatusFailed, StatusPending},
}

// Transition returns nil if from→to is a legal transition.
func Transition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q → %q", from, to)
}

// Task is the atomic unit of work derived from a goal.
type Task struct {
	TaskID           string         `json:"task_id"`
	TaskType         TaskType       `json:"task_type"`
	Priority         Priority       `json:"priority"`
	Context          map[string]any `json:"context"`
	AssignedWorkerID string         `json:"assigned_worker_id,omitempty"`
	Status           Status         `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	RetryCount       int            `json:"retry_count"`
	MaxRetries       int            `json:"max_retries"`
	EstimatedCostUSD float64        `json:"estimated_cost_usd"`
	ActualCostUSD    *float64       `json:"actual_cost_usd,omitempty"`
}

// NewTask builds a pending task with a fresh id and validated fields.
// The context must be non-empty; priority defaults to medium.
func NewTask(taskType TaskType, priority Priority, context map[string]any) (*Task, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	t := &Task{
		TaskID:     uuid.New().String(),
		TaskType:   taskType,
		Priority:   priority,
		Context:    context,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: 3,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the closed enumerations and required fields.
func (t *Task) Validate() error {
	if _, ok := validTaskTypes[t.TaskType]; !ok {
		return &ValidationError{Field: "task_type", Reason: fmt.Sprintf("unknown task type %q", t.TaskType)}
	}
	if _, ok := validPriorities[t.Priority]; !ok {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", t.Priority)}
	}
	if _, ok := validStatuses[t.Status]; !ok {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if len(t.Context) == 0 {
		return &ValidationError{Field: "context", Reason: "context must be non-empty"}
	}
	return nil
}

// Claim marks the task in progress for the given worker.
func (t *Task) Claim(workerID string) error {
	if err := Transition(t.Status, StatusInProgress); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.Status = StatusInProgress
	t.StartedAt = &now
	t.AssignedWorkerID = workerID
	return nil
}

// Complete marks the task done and records its actual cost.
func (t *Task) Complete(actualCostUSD float64) error {
	if err := Transition(t.Status, StatusComplete); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.Status = StatusComplete
	t.CompletedAt = &now
	t.ActualCostUSD = &actualCostUSD
	return nil
}

// Fail marks the task terminally failed.
func (t *Task) Fail() error {
	if err := Transition(t.Status, StatusFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.Status = StatusFailed
	t.CompletedAt = &now
	if t.ActualCostUSD == nil {
		zero := 0.0
		t.ActualCostUSD = &zero
	}
	return nil
}

// Release reverts an in-progress task to pending without counting a retry.
// Used when the worker holding the task stops before it can finish; an
// interrupted attempt is not a task failure.
func (t *Task) Release() error {
	if err := Transition(t.Status, StatusPending); err != nil {
		return err
	}
	t.Status = StatusPending
	t.AssignedWorkerID = ""
	return nil
}

// Requeue records a retryable failure. The retry counter is incremented; if
// it reaches max_retries the task fails terminally and Requeue returns false,
// otherwise the task reverts to pending for another attempt.
func (t *Task) Requeue() (bool, error) {
	t.RetryCount++
	if t.RetryCount >= t.MaxRetries {
		return false, t.Fail()
	}
	if err := Transition(t.Status, StatusPending); err != nil {
		return false, err
	}
	t.Status = StatusPending
	t.AssignedWorkerID = ""
	return true, nil
}
