package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
)

// NotificationRepository handles database operations for notifications
type NotificationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlx.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert persists a new notification and returns its id
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (int64, error) {
	query := `INSERT INTO notifications (user_id, title, message, type, status, todo_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`

	var id int64
	err := r.db.GetContext(ctx, &id, query,
		n.UserID, n.Title, n.Message, n.Type, model.StatusUnread, n.TodoID, n.CreatedAt)
	if err != nil {
		r.logger.Error("failed to insert notification", zap.Error(err))
		return 0, err
	}
	return id, nil
}

// ListByUser retrieves one page of a user's notifications, newest first,
// together with the total row count
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, int, error) {
	query := `SELECT id, user_id, title, message, type, status, todo_id, created_at, read_at
	          FROM notifications
	          WHERE user_id = $1
	          ORDER BY created_at DESC, id DESC
	          LIMIT $2 OFFSET $3`

	notifications := []model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit, offset); err != nil {
		r.logger.Error("failed to list notifications", zap.Error(err), zap.Int64("userID", userID))
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		r.logger.Error("failed to count notifications", zap.Error(err), zap.Int64("userID", userID))
		return nil, 0, err
	}

	return notifications, total, nil
}

// UnreadCount retrieves the count of unread notifications for a user
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND status = $2`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, model.StatusUnread); err != nil {
		r.logger.Error("failed to get unread count", zap.Error(err), zap.Int64("userID", userID))
		return 0, err
	}
	return count, nil
}

// MarkRead marks a notification as read. Marking an already-read row again
// succeeds and keeps the original read timestamp. Returns false when the
// notification does not exist or belongs to another user.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	query := `UPDATE notifications
	          SET status = $1, read_at = COALESCE(read_at, NOW())
	          WHERE id = $2 AND user_id = $3 AND status <> $4`

	res, err := r.db.ExecContext(ctx, query, model.StatusRead, id, userID, model.StatusArchived)
	if err != nil {
		r.logger.Error("failed to mark notification as read", zap.Error(err), zap.Int64("id", id))
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	// Distinguish "missing" from "already archived": the operation stays
	// idempotent for rows the user owns.
	var exists bool
	existsQuery := `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`
	if err := r.db.GetContext(ctx, &exists, existsQuery, id, userID); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkAllRead marks every unread notification of the user as read and
// returns how many rows changed
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	query := `UPDATE notifications
	          SET status = $1, read_at = NOW()
	          WHERE user_id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, model.StatusRead, userID, model.StatusUnread)
	if err != nil {
		r.logger.Error("failed to mark all notifications as read", zap.Error(err), zap.Int64("userID", userID))
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// Delete removes a notification owned by the user. Returns false when no
// such row exists.
func (r *NotificationRepository) Delete(ctx context.Context, userID, id int64) (bool, error) {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("failed to delete notification", zap.Error(err), zap.Int64("id", id))
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
