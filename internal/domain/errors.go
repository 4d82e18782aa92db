package domain

import "fmt"

// ValidationError is returned for malformed input, goals or schemas.
// It is never retried and surfaces immediately to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// QueueCapacityExceededError is returned when a batch enqueue would push an
// agent's queue past its ceiling. No partial state change occurs.
type QueueCapacityExceededError struct {
	QueueKey string
	Depth    int64
	Incoming int
	Capacity int64
}

func (e *QueueCapacityExceededError) Error() string {
	return fmt.Sprintf("queue capacity exceeded for %s: depth %d + incoming %d > capacity %d",
		e.QueueKey, e.Depth, e.Incoming, e.Capacity)
}

// UnroutableTaskError is returned when no skill matches a task type.
// The task fails terminally and is not retried.
type UnroutableTaskError struct {
	TaskID   string
	TaskType TaskType
}

func (e *UnroutableTaskError) Error() string {
	return fmt.Sprintf("no skill registered for task type %q (task %s)", e.TaskType, e.TaskID)
}

// TransientDependencyError wraps a failure from a backing dependency
// (unavailable, rate-limited, timed out). Retried up to max_retries.
type TransientDependencyError struct {
	Dependency string
	Err        error
}

func (e *TransientDependencyError) Error() string {
	return fmt.Sprintf("transient failure from %s: %v", e.Dependency, e.Err)
}

func (e *TransientDependencyError) Unwrap() error { return e.Err }

// NotFoundError is returned on a registry or store lookup miss.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
