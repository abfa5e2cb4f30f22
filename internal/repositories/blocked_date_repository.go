package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	intdb "staybackend/internal/db"
	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

type BlockedDateRepository struct {
	DB *sql.DB
}

const blockedColumns = `id, property_id, start_date, end_date, COALESCE(reason,''), price_override, created_at`

func scanBlocked(s rowScanner) (models.BlockedDate, error) {
	var bd models.BlockedDate
	var price sql.NullString
	if err := s.Scan(&bd.ID, &bd.PropertyID, &bd.StartDate, &bd.EndDate, &bd.Reason, &price, &bd.CreatedAt); err != nil {
		return bd, err
	}
	if price.Valid {
		m, err := models.ParseMoney(price.String)
		if err != nil {
			return bd, err
		}
		bd.PriceOverride = &m
	}
	return bd, nil
}

func (r BlockedDateRepository) query(ctx context.Context, query string, args ...any) ([]models.BlockedDate, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blocked dates: %w", err)
	}
	defer rows.Close()
	var out []models.BlockedDate
	for rows.Next() {
		bd, err := scanBlocked(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bd)
	}
	return out, rows.Err()
}

func (r BlockedDateRepository) ListBlockedDates(ctx context.Context, propertyID int64) ([]models.BlockedDate, error) {
	return r.query(ctx, `SELECT `+blockedColumns+` FROM blocked_dates WHERE property_id = ? ORDER BY start_date`, propertyID)
}

func (r BlockedDateRepository) BlockedInRange(ctx context.Context, propertyID int64, rng models.DateRange) ([]models.BlockedDate, error) {
	return r.query(ctx, `
		SELECT `+blockedColumns+`
		FROM blocked_dates
		WHERE property_id = ? AND start_date < ? AND ? < end_date
		ORDER BY start_date`, propertyID, rng.End, rng.Start)
}

func (r BlockedDateRepository) GetBlockedDate(ctx context.Context, id int64) (models.BlockedDate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+blockedColumns+` FROM blocked_dates WHERE id = ? LIMIT 1`, id)
	bd, err := scanBlocked(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bd, domain.NotFoundError{Resource: "blocked date", Err: err}
	}
	if err != nil {
		return bd, fmt.Errorf("get blocked date: %w", err)
	}
	return bd, nil
}

// CreateBlockedDate refuses windows that overlap a pending or confirmed booking.
func (r BlockedDateRepository) CreateBlockedDate(ctx context.Context, bd models.BlockedDate) (models.BlockedDate, error) {
	err := intdb.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := lockProperty(ctx, tx, bd.PropertyID); err != nil {
			return err
		}
		conflicts, err := findConflicts(ctx, tx, bd.PropertyID, bd.Range(), 0, false)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return domain.ConflictError{Resource: "blocked date", Msg: "Dates overlap existing bookings", Details: conflicts}
		}

		var price any
		if bd.PriceOverride != nil {
			price = *bd.PriceOverride
		}
		now := time.Now().UTC().Truncate(time.Second)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO blocked_dates (property_id, start_date, end_date, reason, price_override, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			bd.PropertyID, bd.StartDate, bd.EndDate, intdb.NullIfEmpty(bd.Reason), price, now)
		if err != nil {
			return fmt.Errorf("insert blocked date: %w", err)
		}
		bd.ID, err = res.LastInsertId()
		bd.CreatedAt = now
		return err
	})
	if err != nil {
		return models.BlockedDate{}, err
	}
	return bd, nil
}

func (r BlockedDateRepository) DeleteBlockedDate(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM blocked_dates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete blocked date: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Resource: "blocked date"}
	}
	return nil
}
