package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boardsync/boardsync/internal/domain/project"
)

// ProjectRepository stores projects for the development server.
type ProjectRepository struct {
	db *DB
}

func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Put inserts or replaces a project.
func (r *ProjectRepository) Put(ctx context.Context, p project.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	query := `
		INSERT INTO projects (id, name, status, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			data = excluded.data
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Status, data); err != nil {
		return fmt.Errorf("failed to store project: %w", err)
	}
	return nil
}

// Get retrieves a project by id.
func (r *ProjectRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM projects WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	var p project.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return &p, nil
}

// List returns every project ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]project.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		var p project.Project
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Delete removes a project.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if affected == 0 {
		return project.ErrNotFound
	}
	return nil
}
