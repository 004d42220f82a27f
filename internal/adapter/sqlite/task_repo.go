package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"storybook/internal/domain"
	"storybook/internal/infra"
)

const (
	qTaskInsert = `insert into story_tasks (id, owner_id, kind, status, total_items, completed_items, result, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	qTaskSelect = `select id, owner_id, kind, status, total_items, completed_items, result, coalesce(error, ''), created_at, updated_at
from story_tasks where id = ?`

	qTaskReserve = `update story_tasks
set completed_items = completed_items + 1, updated_at = ?2
where id = ?1 and status = 'processing' and completed_items < total_items
returning completed_items, total_items`

	qTaskRelease = `update story_tasks
set completed_items = completed_items - 1, updated_at = ?2
where id = ?1 and status = 'processing' and completed_items > 0`

	qTaskAppend = `update story_tasks
set result = case when ?3
        then json_insert(json_insert(result, '$.pages[#]', json(?2)), '$.generatedPages[#]', json(?2))
        else json_insert(result, '$.pages[#]', json(?2))
    end,
    updated_at = ?4
where id = ?1`

	qTaskComplete = `update story_tasks
set status = 'completed', error = null, updated_at = ?2
where id = ?1 and status = 'processing'`

	qTaskFail = `update story_tasks
set status = 'failed', error = ?2, updated_at = ?3
where id = ?1 and status = 'processing'`

	qTaskDeleteBefore = `delete from story_tasks where created_at < ?`
)

// TaskRepository implements domain.TaskRepository on the embedded engine.
type TaskRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	task.Result.Normalize()
	result, err := json.Marshal(task.Result)
	if err != nil {
		return fmt.Errorf("encode task result: %w", err)
	}
	now := r.now()
	_, err = r.db.ExecContext(ctx, qTaskInsert,
		task.ID, task.OwnerID, string(task.Kind), string(task.Status),
		task.TotalItems, task.CompletedItems, string(result),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	task.CreatedAt = time.UnixMilli(now.UnixMilli())
	task.UpdatedAt = task.CreatedAt
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	var (
		task                 domain.Task
		kind, status, result string
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, qTaskSelect, taskID).Scan(
		&task.ID, &task.OwnerID, &kind, &status,
		&task.TotalItems, &task.CompletedItems, &result, &task.Error,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select task: %w", err)
	}
	task.Kind = domain.TaskKind(kind)
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = time.UnixMilli(createdAt)
	task.UpdatedAt = time.UnixMilli(updatedAt)
	if err := json.Unmarshal([]byte(result), &task.Result); err != nil {
		return nil, fmt.Errorf("decode task result: %w", err)
	}
	task.Result.Normalize()
	return &task, nil
}

func (r *TaskRepository) ReserveStep(ctx context.Context, taskID string) (int, int, error) {
	var completed, total int
	err := r.db.QueryRowContext(ctx, qTaskReserve, taskID, r.now().UnixMilli()).Scan(&completed, &total)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, 0, domain.ErrNoWorkLeft
		}
		return 0, 0, fmt.Errorf("reserve step: %w", err)
	}
	return completed, total, nil
}

func (r *TaskRepository) ReleaseStep(ctx context.Context, taskID string) error {
	if _, err := r.db.ExecContext(ctx, qTaskRelease, taskID, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("release step: %w", err)
	}
	return nil
}

func (r *TaskRepository) AppendPage(ctx context.Context, taskID string, page domain.PageImage, generated bool) error {
	entry, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	res, err := r.db.ExecContext(ctx, qTaskAppend, taskID, string(entry), generated, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append page: %w", err)
	}
	return requireRow(res)
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, taskID string) error {
	if _, err := r.db.ExecContext(ctx, qTaskComplete, taskID, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

func (r *TaskRepository) MarkFailed(ctx context.Context, taskID string, message string) error {
	if _, err := r.db.ExecContext(ctx, qTaskFail, taskID, message, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *TaskRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, qTaskDeleteBefore, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete old tasks: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.TaskRepository = (*TaskRepository)(nil)
