package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intdb "staybackend/internal/db"
	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

const msgUnavailable = "Property is no longer available for these dates"

// lockProperty serialises availability-sensitive writes for one property until tx ends.
func lockProperty(ctx context.Context, tx *sql.Tx, propertyID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM properties WHERE id = ? FOR UPDATE`, propertyID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "property"}
	}
	if err != nil {
		return fmt.Errorf("lock property %d: %w", propertyID, err)
	}
	return nil
}

// findConflicts lists pending/confirmed bookings (and optionally blocked dates)
// overlapping r under half-open semantics: existing.start < r.End AND r.Start < existing.end.
func findConflicts(ctx context.Context, q intdb.Execer, propertyID int64, r models.DateRange, excludeBookingID int64, withBlocked bool) ([]models.Conflict, error) {
	var out []models.Conflict

	rows, err := q.QueryContext(ctx, `
		SELECT id, check_in_date, check_out_date
		FROM bookings
		WHERE property_id = ?
		  AND status IN ('pending','confirmed')
		  AND id <> ?
		  AND check_in_date < ?
		  AND ? < check_out_date
		ORDER BY check_in_date`,
		propertyID, excludeBookingID, r.End, r.Start)
	if err != nil {
		return nil, fmt.Errorf("query booking conflicts: %w", err)
	}
	for rows.Next() {
		c := models.Conflict{Type: models.ConflictBooking}
		if err := rows.Scan(&c.ID, &c.Start, &c.End); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if !withBlocked {
		return out, nil
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, start_date, end_date
		FROM blocked_dates
		WHERE property_id = ?
		  AND start_date < ?
		  AND ? < end_date
		ORDER BY start_date`,
		propertyID, r.End, r.Start)
	if err != nil {
		return nil, fmt.Errorf("query blocked conflicts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c := models.Conflict{Type: models.ConflictBlocked}
		if err := rows.Scan(&c.ID, &c.Start, &c.End); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func ensureFree(ctx context.Context, q intdb.Execer, propertyID int64, r models.DateRange, excludeBookingID int64, withBlocked bool) error {
	conflicts, err := findConflicts(ctx, q, propertyID, r, excludeBookingID, withBlocked)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return domain.ConflictError{Resource: "booking", Msg: msgUnavailable, Details: conflicts}
	}
	return nil
}
