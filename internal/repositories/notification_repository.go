package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	intdb "staybackend/internal/db"
	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

type NotificationRepository struct {
	DB *sql.DB
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// InsertNotification is idempotent on dedupe_key.
func (r NotificationRepository) InsertNotification(ctx context.Context, n models.Notification) error {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, title, message, data, is_read, dedupe_key, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`,
		n.UserID, n.Type, n.Title, n.Message, nullJSON(n.Data), n.DedupeKey, created.Truncate(time.Second))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r NotificationRepository) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, user_id, type, title, message, data, is_read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Data = data
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead is the only mutation allowed on notifications.
func (r NotificationRepository) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Resource: "notification"}
	}
	return nil
}

type ActivityRepository struct {
	DB *sql.DB
}

// InsertActivity is idempotent on source_event_id when one is set.
func (r ActivityRepository) InsertActivity(ctx context.Context, a models.ActivityLog) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO activity_logs (actor_type, user_id, action, entity_type, entity_id, metadata, source_event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`,
		a.ActorType, intdb.NullIfZero(a.UserID), a.Action, a.EntityType, a.EntityID,
		nullJSON(a.Metadata), intdb.NullIfEmpty(a.SourceEventID), created.Truncate(time.Second))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r ActivityRepository) ListActivity(ctx context.Context, f models.ActivityFilter) ([]models.ActivityLog, error) {
	where := []string{"1=1"}
	var args []any
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.EntityID > 0 {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, actor_type, COALESCE(user_id,0), action, entity_type, entity_id, metadata, created_at
		FROM activity_logs
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []models.ActivityLog
	for rows.Next() {
		var a models.ActivityLog
		var meta []byte
		if err := rows.Scan(&a.ID, &a.ActorType, &a.UserID, &a.Action, &a.EntityType, &a.EntityID, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Metadata = meta
		out = append(out, a)
	}
	return out, rows.Err()
}
