package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

// History is the durable task execution record in PostgreSQL. Every task
// that reaches a terminal state is upserted here for later inspection;
// terminal failures are never silently dropped.
type History struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewHistory connects a pgx pool to the given DSN.
func NewHistory(dsn string, logger *zap.Logger) (*History, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &History{db: pool, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations
// directory in lexical order.
func (h *History) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := h.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		h.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

// Record upserts a task snapshot. Re-recording the same task id (a retry
// that later finishes) overwrites the previous snapshot.
func (h *History) Record(ctx context.Context, task *domain.Task) error {
	contextJSON, err := json.Marshal(task.Context)
	if err != nil {
		return fmt.Errorf("marshal task context: %w", err)
	}
	agentID, _ := task.Context["agent_id"].(string)

	_, err = h.db.Exec(ctx, `
		INSERT INTO task_history (
			task_id, agent_id, task_type, priority, status, context,
			assigned_worker_id, retry_count, max_retries,
			estimated_cost_usd, actual_cost_usd,
			created_at, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			assigned_worker_id = EXCLUDED.assigned_worker_id,
			retry_count = EXCLUDED.retry_count,
			actual_cost_usd = EXCLUDED.actual_cost_usd,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		task.TaskID, agentID, task.TaskType, task.Priority, task.Status, contextJSON,
		task.AssignedWorkerID, task.RetryCount, task.MaxRetries,
		task.EstimatedCostUSD, task.ActualCostUSD,
		task.CreatedAt, task.StartedAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("record task %s: %w", task.TaskID, err)
	}
	return nil
}

// Get returns one recorded task by id.
func (h *History) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	var (
		task        domain.Task
		contextJSON []byte
	)
	err := h.db.QueryRow(ctx, `
		SELECT task_id, task_type, priority, status, context,
		       assigned_worker_id, retry_count, max_retries,
		       estimated_cost_usd, actual_cost_usd,
		       created_at, started_at, completed_at
		FROM task_history
		WHERE task_id = $1`, taskID,
	).Scan(
		&task.TaskID, &task.TaskType, &task.Priority, &task.Status, &contextJSON,
		&task.AssignedWorkerID, &task.RetryCount, &task.MaxRetries,
		&task.EstimatedCostUSD, &task.ActualCostUSD,
		&task.CreatedAt, &task.StartedAt, &task.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "task", ID: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if err := json.Unmarshal(contextJSON, &task.Context); err != nil {
		return nil, fmt.Errorf("unmarshal task context: %w", err)
	}
	return &task, nil
}

// ListByAgent returns an agent's recorded tasks, most recent first.
func (h *History) ListByAgent(ctx context.Context, agentID string, limit int) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(ctx, `
		SELECT task_id, task_type, priority, status, context,
		       assigned_worker_id, retry_count, max_retries,
		       estimated_cost_usd, actual_cost_usd,
		       created_at, started_at, completed_at
		FROM task_history
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", agentID, err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		var (
			task        domain.Task
			contextJSON []byte
		)
		if err := rows.Scan(
			&task.TaskID, &task.TaskType, &task.Priority, &task.Status, &contextJSON,
			&task.AssignedWorkerID, &task.RetryCount, &task.MaxRetries,
			&task.EstimatedCostUSD, &task.ActualCostUSD,
			&task.CreatedAt, &task.StartedAt, &task.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal(contextJSON, &task.Context); err != nil {
			return nil, fmt.Errorf("unmarshal task context: %w", err)
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// SpendSince sums actual cost recorded for an agent since the given time.
// Feeds the budget ledger on restart.
func (h *History) SpendSince(ctx context.Context, agentID string, since string) (float64, error) {
	var total float64
	err := h.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(actual_cost_usd), 0)
		FROM task_history
		WHERE agent_id = $1 AND completed_at >= $2::timestamptz`,
		agentID, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum spend for %s: %w", agentID, err)
	}
	return total, nil
}

// Close shuts down the connection pool.
func (h *History) Close() {
	h.db.Close()
}
