package planner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/queue"
)

// Per-task-type cost estimates in USD. Video dwarfs everything else;
// analysis and engagement replies are effectively free.
var costTable = map[domain.TaskType]float64{
	domain.TypeCreateVideo:     0.50,
	domain.TypeCreateImage:     0.05,
	domain.TypeGenerateCaption: 0.01,
	domain.TypePublishContent:  0.001,
	domain.TypeAnalyzeTrend:    0,
	domain.TypeReplyComment:    0,
}

// EstimatedCost returns the planning estimate for a task type.
func EstimatedCost(t domain.TaskType) float64 {
	return costTable[t]
}

var countRe = regexp.MustCompile(`\b(\d+)\b`)

// Planner turns free-text goals into tasks on one agent's queue, under the
// shared daily budget.
type Planner struct {
	agentID string
	queue   queue.TaskQueue
	budget  *Budget
	logger  *zap.Logger
}

// NewPlanner creates a planner for the given agent.
func NewPlanner(agentID string, q queue.TaskQueue, budget *Budget, logger *zap.Logger) *Planner {
	return &Planner{agentID: agentID, queue: q, budget: budget, logger: logger}
}

// Decompose turns a goal into at least one task. The heuristic is keyword
// based: each artifact type mentioned in the goal yields a task of the
// matching type, an URGENT marker raises priority to high, and a leading
// count multiplies the primary artifact. Tasks whose combined estimate
// would not fit the remaining budget are dropped lowest priority first.
func (p *Planner) Decompose(goal string) ([]*domain.Task, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, &domain.ValidationError{Field: "goal", Reason: "must not be empty"}
	}

	lower := strings.ToLower(goal)
	priority := domain.PriorityMedium
	if strings.Contains(goal, "URGENT") {
		priority = domain.PriorityHigh
	}

	types := artifactTypes(lower)
	count := 1
	if m := countRe.FindString(lower); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 1 {
			count = n
			if count > 10 {
				count = 10
			}
		}
	}

	var tasks []*domain.Task
	for i, tt := range types {
		n := 1
		// The leading count applies to the primary artifact only:
		// "3 captions and an image" is three captions, one image.
		if i == 0 {
			n = count
		}
		for j := 0; j < n; j++ {
			task, err := domain.NewTask(tt, priority, map[string]any{
				"goal_description": goal,
				"agent_id":         p.agentID,
			})
			if err != nil {
				return nil, fmt.Errorf("decompose goal: %w", err)
			}
			task.EstimatedCostUSD = EstimatedCost(tt)
			tasks = append(tasks, task)
		}
	}

	tasks, total := p.fitBudget(tasks)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("decompose goal: daily budget remaining %.4f cannot cover any task", p.budget.Remaining())
	}

	p.logger.Info("goal decomposed",
		zap.String("agent_id", p.agentID),
		zap.Int("tasks", len(tasks)),
		zap.Float64("estimated_cost_usd", total))
	return tasks, nil
}

// artifactTypes maps goal keywords to task types, in mention order of the
// fixed scan below. No keyword at all defaults to a caption.
func artifactTypes(lower string) []domain.TaskType {
	var types []domain.TaskType
	add := func(t domain.TaskType) {
		for _, existing := range types {
			if existing == t {
				return
			}
		}
		types = append(types, t)
	}

	if strings.Contains(lower, "caption") {
		add(domain.TypeGenerateCaption)
	}
	if strings.Contains(lower, "image") || strings.Contains(lower, "photo") || strings.Contains(lower, "picture") {
		add(domain.TypeCreateImage)
	}
	if strings.Contains(lower, "video") || strings.Contains(lower, "reel") {
		add(domain.TypeCreateVideo)
	}
	if strings.Contains(lower, "trend") || strings.Contains(lower, "analyze") || strings.Contains(lower, "research") {
		add(domain.TypeAnalyzeTrend)
	}
	if strings.Contains(lower, "reply") || strings.Contains(lower, "respond") || strings.Contains(lower, "comment") {
		add(domain.TypeReplyComment)
	}
	if strings.Contains(lower, "publish") || strings.Contains(lower, "post ") || strings.HasSuffix(lower, "post") {
		add(domain.TypePublishContent)
	}
	if len(types) == 0 {
		add(domain.TypeGenerateCaption)
	}
	return types
}

// fitBudget drops lowest-priority, most expensive tasks until the batch
// estimate fits the remaining budget. Order among survivors is preserved.
func (p *Planner) fitBudget(tasks []*domain.Task) ([]*domain.Task, float64) {
	remaining := p.budget.Remaining()
	total := 0.0
	for _, t := range tasks {
		total += t.EstimatedCostUSD
	}

	for total > remaining && len(tasks) > 0 {
		drop := -1
		for _, prio := range []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh} {
			for i, t := range tasks {
				if t.Priority != prio {
					continue
				}
				if drop == -1 || t.EstimatedCostUSD > tasks[drop].EstimatedCostUSD {
					drop = i
				}
			}
			if drop != -1 {
				break
			}
		}
		dropped := tasks[drop]
		p.logger.Warn("dropping task to fit budget",
			zap.String("task_type", string(dropped.TaskType)),
			zap.Float64("estimated_cost_usd", dropped.EstimatedCostUSD),
			zap.Float64("budget_remaining_usd", remaining))
		total -= dropped.EstimatedCostUSD
		tasks = append(tasks[:drop], tasks[drop+1:]...)
	}
	return tasks, total
}

// DecomposeAndQueue decomposes the goal, reserves the batch estimate
// against the budget, and pushes the whole batch atomically. A rejected
// enqueue releases the reservation and leaves the queue untouched.
func (p *Planner) DecomposeAndQueue(ctx context.Context, goal string) (int, error) {
	tasks, err := p.Decompose(goal)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, t := range tasks {
		total += t.EstimatedCostUSD
	}
	if err := p.budget.Reserve(total); err != nil {
		return 0, fmt.Errorf("reserve budget for goal: %w", err)
	}

	if err := p.queue.PushBatch(ctx, p.agentID, tasks); err != nil {
		p.budget.Release(total)
		return 0, err
	}

	p.logger.Info("goal queued",
		zap.String("agent_id", p.agentID),
		zap.Int("tasks", len(tasks)),
		zap.Float64("reserved_usd", total))
	return len(tasks), nil
}
