package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boardsync/boardsync/internal/domain/pool"
)

// PoolRepository stores fund pools for the development server.
type PoolRepository struct {
	db *DB
}

func NewPoolRepository(db *DB) *PoolRepository {
	return &PoolRepository{db: db}
}

// Put inserts or replaces a pool.
func (r *PoolRepository) Put(ctx context.Context, p pool.FundPool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pool: %w", err)
	}

	query := `
		INSERT INTO fund_pools (id, name, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, data); err != nil {
		return fmt.Errorf("failed to store pool: %w", err)
	}
	return nil
}

// Get retrieves a pool by id.
func (r *PoolRepository) Get(ctx context.Context, id string) (*pool.FundPool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM fund_pools WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pool.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}

	var p pool.FundPool
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pool: %w", err)
	}
	return &p, nil
}

// List returns every pool ordered by name.
func (r *PoolRepository) List(ctx context.Context) ([]pool.FundPool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM fund_pools ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	var pools []pool.FundPool
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		var p pool.FundPool
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// Delete removes a pool.
func (r *PoolRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fund_pools WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pool: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete pool: %w", err)
	}
	if affected == 0 {
		return pool.ErrNotFound
	}
	return nil
}
