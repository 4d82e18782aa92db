package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/queue"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/skill"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

// routeTable maps task types to the skill that executes them. Task types
// with no entry are unroutable and fail terminally.
var routeTable = map[domain.TaskType]string{
	domain.TypeAnalyzeTrend:    "trend_detector",
	domain.TypeGenerateCaption: "caption_writer",
	domain.TypePublishContent:  "social_publisher",
}

// RouteFor returns the skill id handling a task type.
func RouteFor(t domain.TaskType) (string, bool) {
	id, ok := routeTable[t]
	return id, ok
}

// Recorder persists terminal task records for inspection. Failed and
// completed tasks are never silently dropped.
type Recorder interface {
	Record(ctx context.Context, task *domain.Task) error
}

// Worker drains one agent's queue: claim, route, execute, finalize.
type Worker struct {
	id       string
	agentID  string
	queue    queue.TaskQueue
	registry *skill.Registry
	tools    tool.Caller
	recorder Recorder
	timeout  time.Duration
	logger   *zap.Logger
}

// NewWorker builds a worker bound to an agent's queue. A zero timeout
// defaults to 60s per skill execution.
func NewWorker(id, agentID string, q queue.TaskQueue, reg *skill.Registry, tools tool.Caller, rec Recorder, timeout time.Duration, logger *zap.Logger) *Worker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Worker{
		id:       id,
		agentID:  agentID,
		queue:    q,
		registry: reg,
		tools:    tools,
		recorder: rec,
		timeout:  timeout,
		logger:   logger.With(zap.String("worker_id", id)),
	}
}

// ProcessNext pops and fully processes one task. Returns queue.ErrEmpty
// when there is nothing to do.
func (w *Worker) ProcessNext(ctx context.Context) error {
	task, err := w.queue.Pop(ctx, w.agentID)
	if err != nil {
		return err
	}
	return w.process(ctx, task)
}

func (w *Worker) process(ctx context.Context, task *domain.Task) error {
	if err := task.Claim(w.id); err != nil {
		return fmt.Errorf("claim task %s: %w", task.TaskID, err)
	}
	w.logger.Info("task claimed",
		zap.String("task_id", task.TaskID),
		zap.String("task_type", string(task.TaskType)),
		zap.String("priority", string(task.Priority)))

	skillID, ok := RouteFor(task.TaskType)
	if !ok {
		return w.failTerminal(ctx, task, &domain.UnroutableTaskError{
			TaskID:   task.TaskID,
			TaskType: task.TaskType,
		})
	}
	entry, err := w.registry.Get(skillID)
	if err != nil {
		return w.failTerminal(ctx, task, &domain.UnroutableTaskError{
			TaskID:   task.TaskID,
			TaskType: task.TaskType,
		})
	}

	s := entry.Factory(w.tools, w.logger)
	execCtx, cancel := context.WithTimeout(ctx, w.timeout)
	result, err := s.Execute(execCtx, task.Context)
	cancel()

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// The worker is stopping, not the task failing. Put it back
			// untouched so another run picks it up.
			return w.release(task, err)
		}
		if retryable(err, execCtx) {
			return w.retry(ctx, task, err)
		}
		return w.failTerminal(ctx, task, err)
	}

	cost := task.EstimatedCostUSD
	if result != nil && result.CostUSD > 0 {
		cost = result.CostUSD
	}
	if err := task.Complete(cost); err != nil {
		return fmt.Errorf("complete task %s: %w", task.TaskID, err)
	}
	w.logger.Info("task complete",
		zap.String("task_id", task.TaskID),
		zap.Float64("actual_cost_usd", cost),
		zap.Int("retry_count", task.RetryCount))
	return w.record(ctx, task)
}

// retryable classifies an execution error. Transient dependency failures
// and skill timeouts are retried; everything else is terminal.
func retryable(err error, execCtx context.Context) bool {
	var transient *domain.TransientDependencyError
	if errors.As(err, &transient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	return false
}

// retry re-pushes the task at the tail of its priority tier, or finalizes
// it as failed once retries are exhausted.
func (w *Worker) retry(ctx context.Context, task *domain.Task, cause error) error {
	again, err := task.Requeue()
	if err != nil {
		return fmt.Errorf("requeue task %s: %w", task.TaskID, err)
	}
	if !again {
		w.logger.Warn("task failed, retries exhausted",
			zap.String("task_id", task.TaskID),
			zap.Int("retry_count", task.RetryCount),
			zap.Error(cause))
		return w.record(ctx, task)
	}

	w.logger.Warn("task requeued after transient failure",
		zap.String("task_id", task.TaskID),
		zap.Int("retry_count", task.RetryCount),
		zap.Error(cause))
	if err := w.queue.Push(ctx, w.agentID, task); err != nil {
		// The queue refused the retry; the task record must not vanish.
		if ferr := task.Fail(); ferr != nil {
			return fmt.Errorf("fail task %s after rejected requeue: %w", task.TaskID, ferr)
		}
		if rerr := w.record(ctx, task); rerr != nil {
			return rerr
		}
		return fmt.Errorf("requeue task %s: %w", task.TaskID, err)
	}
	return nil
}

// release puts an interrupted task back on its priority tier with no retry
// burned. The worker's own context is already cancelled, so the re-push
// runs under a fresh short-lived one.
func (w *Worker) release(task *domain.Task, cause error) error {
	if err := task.Release(); err != nil {
		return fmt.Errorf("release task %s: %w", task.TaskID, err)
	}
	pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Push(pushCtx, w.agentID, task); err != nil {
		if ferr := task.Fail(); ferr != nil {
			return fmt.Errorf("fail task %s after rejected release: %w", task.TaskID, ferr)
		}
		if rerr := w.record(pushCtx, task); rerr != nil {
			return rerr
		}
		return fmt.Errorf("release task %s: %w", task.TaskID, err)
	}
	w.logger.Info("task released on worker stop",
		zap.String("task_id", task.TaskID),
		zap.Int("retry_count", task.RetryCount),
		zap.Error(cause))
	return nil
}

func (w *Worker) failTerminal(ctx context.Context, task *domain.Task, cause error) error {
	if err := task.Fail(); err != nil {
		return fmt.Errorf("fail task %s: %w", task.TaskID, err)
	}
	w.logger.Error("task failed terminally",
		zap.String("task_id", task.TaskID),
		zap.String("task_type", string(task.TaskType)),
		zap.Error(cause))
	return w.record(ctx, task)
}

func (w *Worker) record(ctx context.Context, task *domain.Task) error {
	if w.recorder == nil {
		return nil
	}
	if err := w.recorder.Record(ctx, task); err != nil {
		w.logger.Error("record task", zap.String("task_id", task.TaskID), zap.Error(err))
		return err
	}
	return nil
}

// Pool runs a fixed number of workers against one agent's queue.
type Pool struct {
	workers  []*Worker
	interval time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewPool builds count workers sharing the same queue and registry. The
// poll interval bounds idle spinning when the queue is empty.
func NewPool(count int, agentID string, q queue.TaskQueue, reg *skill.Registry, tools tool.Caller, rec Recorder, timeout, interval time.Duration, logger *zap.Logger) *Pool {
	if count <= 0 {
		count = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	p := &Pool{interval: interval, logger: logger}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("worker-%d", i+1)
		p.workers = append(p.workers, NewWorker(id, agentID, q, reg, tools, rec, timeout, logger))
	}
	return p
}

// Run starts all workers and blocks until the context is cancelled and
// every in-flight task has finished.
func (p *Pool) Run(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run(ctx, p.interval)
		}(w)
	}
	p.wg.Wait()
}

func (w *Worker) run(ctx context.Context, interval time.Duration) {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		default:
		}

		err := w.ProcessNext(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, queue.ErrEmpty) {
			w.logger.Error("process task", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-time.After(interval):
		}
	}
}
