package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/sqlinline"
)

// TaskRepositoryPG implements domain.TaskRepository on PostgreSQL.
type TaskRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTaskRepository creates a task repository backed by PostgreSQL.
func NewTaskRepository(sql infra.SQLExecutor) *TaskRepositoryPG {
	return &TaskRepositoryPG{sql: sql}
}

// Create inserts a new task record and fills its timestamps.
func (r *TaskRepositoryPG) Create(ctx context.Context, task *domain.Task) error {
	task.Result.Normalize()
	result, err := json.Marshal(task.Result)
	if err != nil {
		return fmt.Errorf("encode task result: %w", err)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QTaskInsert,
		task.ID,
		task.OwnerID,
		string(task.Kind),
		string(task.Status),
		task.TotalItems,
		task.CompletedItems,
		string(result),
	)
	if err := row.Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID fetches a task by its identifier.
func (r *TaskRepositoryPG) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	var (
		task   domain.Task
		kind   string
		status string
		result []byte
	)
	err := r.sql.QueryRow(ctx, sqlinline.QTaskSelectByID, taskID).Scan(
		&task.ID,
		&task.OwnerID,
		&kind,
		&status,
		&task.TotalItems,
		&task.CompletedItems,
		&result,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select task: %w", err)
	}
	task.Kind = domain.TaskKind(kind)
	task.Status = domain.TaskStatus(status)
	if len(result) > 0 {
		if err := json.Unmarshal(result, &task.Result); err != nil {
			return nil, fmt.Errorf("decode task result: %w", err)
		}
	}
	task.Result.Normalize()
	return &task, nil
}

// ReserveStep atomically claims the next page of a processing task.
func (r *TaskRepositoryPG) ReserveStep(ctx context.Context, taskID string) (int, int, error) {
	var completed, total int
	err := r.sql.QueryRow(ctx, sqlinline.QTaskReserveStep, taskID).Scan(&completed, &total)
	if err != nil {
		if isMissing(err) {
			return 0, 0, domain.ErrNoWorkLeft
		}
		return 0, 0, fmt.Errorf("reserve step: %w", err)
	}
	return completed, total, nil
}

func (r *TaskRepositoryPG) ReleaseStep(ctx context.Context, taskID string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QTaskReleaseStep, taskID); err != nil {
		return fmt.Errorf("release step: %w", err)
	}
	return nil
}

func (r *TaskRepositoryPG) AppendPage(ctx context.Context, taskID string, page domain.PageImage, generated bool) error {
	entry, err := json.Marshal([]domain.PageImage{page})
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QTaskAppendPage, taskID, string(entry), generated)
	if err != nil {
		return fmt.Errorf("append page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepositoryPG) MarkCompleted(ctx context.Context, taskID string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QTaskMarkCompleted, taskID); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

func (r *TaskRepositoryPG) MarkFailed(ctx context.Context, taskID string, message string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QTaskMarkFailed, taskID, message); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// DeleteOlderThan removes tasks created before cutoff and returns how many went.
func (r *TaskRepositoryPG) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QTaskDeleteOlderThan, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.TaskRepository = (*TaskRepositoryPG)(nil)
