package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boardsync/boardsync/internal/domain/comment"
	"github.com/boardsync/boardsync/internal/domain/notification"
)

// CommentRepository stores comment threads for the development server.
type CommentRepository struct {
	db *DB
}

func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Put inserts or replaces a comment.
func (r *CommentRepository) Put(ctx context.Context, c comment.Comment) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode comment: %w", err)
	}

	query := `
		INSERT INTO comments (id, task_id, created_at, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.TaskID, c.CreatedAt, data); err != nil {
		return fmt.Errorf("failed to store comment: %w", err)
	}
	return nil
}

// Get retrieves a comment by id.
func (r *CommentRepository) Get(ctx context.Context, id string) (*comment.Comment, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM comments WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, comment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	var c comment.Comment
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode comment: %w", err)
	}
	return &c, nil
}

// ListByTask returns one task's comments, newest first.
func (r *CommentRepository) ListByTask(ctx context.Context, taskID string) ([]comment.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM comments WHERE task_id = ? ORDER BY created_at DESC, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []comment.Comment
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		var c comment.Comment
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Delete removes a comment.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if affected == 0 {
		return comment.ErrNotFound
	}
	return nil
}

// NotificationRepository stores per-user notifications for the development
// server.
type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Put inserts or replaces a notification.
func (r *NotificationRepository) Put(ctx context.Context, n notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	isRead := 0
	if n.IsRead {
		isRead = 1
	}
	query := `
		INSERT INTO notifications (id, user_id, is_read, created_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_read = excluded.is_read,
			data = excluded.data
	`
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, isRead, n.CreatedAt, data); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// ListByUser returns one user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var feed []notification.Notification
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		var n notification.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		feed = append(feed, n)
	}
	return feed, rows.Err()
}

// CountUnread returns one user's unread notification count.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

// MarkRead flags one notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM notifications WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}

	var n notification.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}
	n.IsRead = true
	return r.Put(ctx, n)
}

// MarkAllRead flags every notification for one user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM notifications WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark all read: %w", err)
	}
	defer rows.Close()

	var pending []notification.Notification
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("failed to scan notification: %w", err)
		}
		var n notification.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("failed to decode notification: %w", err)
		}
		n.IsRead = true
		pending = append(pending, n)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, n := range pending {
		if err := r.Put(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
