package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boardsync/boardsync/internal/domain/payment"
)

// OrderRepository stores orders for the development server.
type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Put inserts or replaces an order.
func (r *OrderRepository) Put(ctx context.Context, o payment.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	query := `
		INSERT INTO orders (id, created_at, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`
	if _, err := r.db.ExecContext(ctx, query, o.ID, o.CreatedAt, data); err != nil {
		return fmt.Errorf("failed to store order: %w", err)
	}
	return nil
}

// Get retrieves an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*payment.Order, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM orders WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	var o payment.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return &o, nil
}

// List returns one page of orders, newest first, plus the total count.
func (r *OrderRepository) List(ctx context.Context, skip, limit int) ([]payment.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM orders ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []payment.Order
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		var o payment.Order
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, 0, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}
