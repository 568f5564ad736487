package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boardsync/boardsync/internal/domain/task"
)

// TaskRepository stores tasks for the development server.
type TaskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Put inserts or replaces a task.
func (r *TaskRepository) Put(ctx context.Context, t task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	query := `
		INSERT INTO tasks (id, project_id, status, sort_order, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			status = excluded.status,
			sort_order = excluded.sort_order,
			data = excluded.data
	`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.ProjectID, t.Status, t.Order, data); err != nil {
		return fmt.Errorf("failed to store task: %w", err)
	}
	return nil
}

// Get retrieves a task by id.
func (r *TaskRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM tasks WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &t, nil
}

// List returns every task, ordered by column then sort order.
func (r *TaskRepository) List(ctx context.Context) ([]task.Task, error) {
	return r.query(ctx, `SELECT data FROM tasks ORDER BY status, sort_order, id`)
}

// ListByProject returns one project's tasks ordered by column then sort
// order.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]task.Task, error) {
	return r.query(ctx,
		`SELECT data FROM tasks WHERE project_id = ? ORDER BY status, sort_order, id`, projectID)
}

func (r *TaskRepository) query(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if affected == 0 {
		return task.ErrNotFound
	}
	return nil
}

// ApplyOrders updates sort orders for a batch of tasks atomically.
func (r *TaskRepository) ApplyOrders(ctx context.Context, patches []task.OrderPatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer tx.Rollback()

	for _, p := range patches {
		t, err := r.Get(ctx, p.TaskID)
		if err != nil {
			return err
		}
		t.Order = p.Order
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode task: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET sort_order = ?, data = ? WHERE id = ?`,
			p.Order, data, p.TaskID); err != nil {
			return fmt.Errorf("failed to apply order: %w", err)
		}
	}
	return tx.Commit()
}
