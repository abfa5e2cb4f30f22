package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	intdb "staybackend/internal/db"
	"staybackend/internal/domain/models"
)

type OutboxRepository struct {
	DB *sql.DB
}

func insertOutbox(ctx context.Context, q intdb.Execer, events []models.OutboxEvent) error {
	for _, e := range events {
		if e.ID == "" || e.Kind == "" {
			return fmt.Errorf("outbox event without id or kind")
		}
		created := e.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO outbox_events (id, kind, aggregate_id, payload, status, attempts, created_at)
			VALUES (?, ?, ?, ?, 'pending', 0, ?)`,
			e.ID, e.Kind, e.AggregateID, []byte(e.Payload), created.Truncate(time.Second),
		); err != nil {
			return fmt.Errorf("insert outbox %s: %w", e.Kind, err)
		}
	}
	return nil
}

// EnqueueOutbox stores events outside of any business transaction.
func (r OutboxRepository) EnqueueOutbox(ctx context.Context, events ...models.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return intdb.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		return insertOutbox(ctx, tx, events)
	})
}

// ReserveOutbox leases up to limit due events. SKIP LOCKED lets several dispatchers run side by side.
func (r OutboxRepository) ReserveOutbox(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.OutboxEvent
	err := intdb.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		rows, err := tx.QueryContext(ctx, `
			SELECT id, kind, aggregate_id, payload, attempts, created_at
			FROM outbox_events
			WHERE status = 'pending' AND (reserved_until IS NULL OR reserved_until < ?)
			ORDER BY created_at
			LIMIT ?
			FOR UPDATE SKIP LOCKED`, now, limit)
		if err != nil {
			return fmt.Errorf("select outbox: %w", err)
		}
		for rows.Next() {
			var e models.OutboxEvent
			var payload []byte
			if err := rows.Scan(&e.ID, &e.Kind, &e.AggregateID, &payload, &e.Attempts, &e.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			e.Payload = payload
			e.Status = models.OutboxPending
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		if len(out) == 0 {
			return nil
		}

		until := now.Add(lease)
		args := []any{until}
		for i := range out {
			out[i].Attempts++
			out[i].ReservedUntil = &until
			args = append(args, out[i].ID)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(out)), ",")
		_, err = tx.ExecContext(ctx, `
			UPDATE outbox_events
			SET attempts = attempts + 1, reserved_until = ?
			WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("reserve outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r OutboxRepository) MarkOutboxDone(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE outbox_events SET status = 'done', reserved_until = NULL, last_error = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark outbox done: %w", err)
	}
	return nil
}

// MarkOutboxFailed keeps the event pending and pushes its next attempt to retryAt.
func (r OutboxRepository) MarkOutboxFailed(ctx context.Context, id, lastErr string, retryAt time.Time) error {
	lastErr = truncateError(lastErr)
	_, err := r.DB.ExecContext(ctx, `
		UPDATE outbox_events SET last_error = ?, reserved_until = ? WHERE id = ?`, lastErr, retryAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

// MarkOutboxDead parks an event that exhausted its attempts.
func (r OutboxRepository) MarkOutboxDead(ctx context.Context, id, lastErr string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE outbox_events SET status = 'dead', last_error = ?, reserved_until = NULL WHERE id = ?`, truncateError(lastErr), id)
	if err != nil {
		return fmt.Errorf("mark outbox dead: %w", err)
	}
	return nil
}

// PurgeOutbox deletes up to limit delivered events created before the given time.
func (r OutboxRepository) PurgeOutbox(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM outbox_events WHERE status = 'done' AND created_at < ? ORDER BY created_at LIMIT ?`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return n, nil
}

func truncateError(s string) string {
	const maxLastError = 1000
	if len(s) <= maxLastError {
		return s
	}
	s = s[:maxLastError]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
