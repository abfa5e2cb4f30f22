package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	intdb "staybackend/internal/db"
	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

type BookingRepository struct {
	DB *sql.DB
}

const bookingColumns = `
	id, property_id, COALESCE(guest_id,0), host_id,
	check_in_date, check_out_date, guests_count, total_amount, currency,
	guest_name, guest_email, guest_phone, COALESCE(special_requests,''),
	status, payment_status, COALESCE(payment_intent_id,''),
	refund_required, refund_amount, COALESCE(cancellation_reason,''),
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (models.Booking, error) {
	var b models.Booking
	err := s.Scan(
		&b.ID,
		&b.PropertyID,
		&b.GuestID,
		&b.HostID,
		&b.CheckIn,
		&b.CheckOut,
		&b.GuestsCount,
		&b.TotalAmount,
		&b.Currency,
		&b.GuestName,
		&b.GuestEmail,
		&b.GuestPhone,
		&b.SpecialRequests,
		&b.Status,
		&b.PaymentStatus,
		&b.PaymentIntentID,
		&b.RefundRequired,
		&b.RefundAmount,
		&b.CancellationReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (r BookingRepository) GetBooking(ctx context.Context, id int64) (models.Booking, error) {
	if id <= 0 {
		return models.Booking{}, domain.ValidationError{Field: "id", Msg: "invalid booking id"}
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? LIMIT 1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return models.Booking{}, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

func (r BookingRepository) FindBookingByIntent(ctx context.Context, intentID string) (models.Booking, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return models.Booking{}, domain.ValidationError{Field: "paymentIntentId", Msg: "required"}
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_intent_id = ? LIMIT 1`, intentID)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return models.Booking{}, fmt.Errorf("find booking by intent: %w", err)
	}
	return b, nil
}

// CreateBooking locks the property, re-checks the range and inserts the booking together
// with the outbox events built for it.
func (r BookingRepository) CreateBooking(ctx context.Context, b models.Booking, buildEvents func(models.Booking) ([]models.OutboxEvent, error)) (models.Booking, error) {
	if !b.Range().Valid() {
		return models.Booking{}, domain.ValidationError{Field: "checkOut", Msg: "check-out must be after check-in"}
	}

	err := intdb.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := lockProperty(ctx, tx, b.PropertyID); err != nil {
			return err
		}
		if err := ensureFree(ctx, tx, b.PropertyID, b.Range(), 0, true); err != nil {
			return err
		}

		now := time.Now().UTC().Truncate(time.Second)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (
				property_id, guest_id, host_id, check_in_date, check_out_date, guests_count,
				total_amount, currency, guest_name, guest_email, guest_phone, special_requests,
				status, payment_status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.PropertyID, intdb.NullIfZero(b.GuestID), b.HostID, b.CheckIn, b.CheckOut, b.GuestsCount,
			b.TotalAmount, b.Currency, b.GuestName, b.GuestEmail, b.GuestPhone, intdb.NullIfEmpty(b.SpecialRequests),
			b.Status, b.PaymentStatus, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert booking id: %w", err)
		}
		b.ID = id
		b.CreatedAt = now
		b.UpdatedAt = now

		if buildEvents == nil {
			return nil
		}
		events, err := buildEvents(b)
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
	if err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

// ApplyChange performs the conditional update described by ch. Zero matched rows
// returns domain.ErrStaleState and nothing is written.
func (r BookingRepository) ApplyChange(ctx context.Context, ch models.StatusChange, events []models.OutboxEvent) error {
	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Truncate(time.Second)}

	if ch.ToStatus != "" {
		set = append(set, "status = ?")
		args = append(args, ch.ToStatus)
	}
	if ch.ToPayment != "" {
		set = append(set, "payment_status = ?")
		args = append(args, ch.ToPayment)
	}
	if ch.RefundRequired != nil {
		set = append(set, "refund_required = ?")
		args = append(args, *ch.RefundRequired)
	}
	if ch.RefundAmount != nil {
		set = append(set, "refund_amount = ?")
		args = append(args, *ch.RefundAmount)
	}
	if ch.CancellationReason != "" {
		set = append(set, "cancellation_reason = ?")
		args = append(args, ch.CancellationReason)
	}
	if ch.PaymentIntentID != "" {
		set = append(set, "payment_intent_id = ?")
		args = append(args, ch.PaymentIntentID)
	}
	args = append(args, ch.BookingID, ch.FromStatus, ch.FromPayment)

	query := `UPDATE bookings SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND status = ? AND payment_status = ?`

	return intdb.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if ch.RecheckAvailability {
			if err := lockProperty(ctx, tx, ch.PropertyID); err != nil {
				return err
			}
			if err := ensureFree(ctx, tx, ch.PropertyID, ch.Range, ch.BookingID, true); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update booking %d: %w", ch.BookingID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update booking %d: %w", ch.BookingID, err)
		}
		if n == 0 {
			return domain.ErrStaleState
		}
		return insertOutbox(ctx, tx, events)
	})
}

// AttachPaymentIntent records the processor intent on a booking that is still payable.
func (r BookingRepository) AttachPaymentIntent(ctx context.Context, bookingID int64, intentID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE bookings
		SET payment_intent_id = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending','confirmed') AND payment_status <> 'paid'`,
		intentID, time.Now().UTC().Truncate(time.Second), bookingID)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return domain.ConflictError{Resource: "payment intent", Msg: "intent already attached to another booking", Err: err}
		}
		return fmt.Errorf("attach intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach intent: %w", err)
	}
	if n == 0 {
		return domain.ErrStaleState
	}
	return nil
}

func (r BookingRepository) ActiveBookingsInRange(ctx context.Context, propertyID int64, rng models.DateRange, excludeID int64) ([]models.Booking, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE property_id = ?
		  AND status IN ('pending','confirmed')
		  AND id <> ?
		  AND check_in_date < ?
		  AND ? < check_out_date
		ORDER BY check_in_date`,
		propertyID, excludeID, rng.End, rng.Start)
	if err != nil {
		return nil, fmt.Errorf("active bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBookings returns page p for f plus per-status counts over the filter without its status clause.
func (r BookingRepository) ListBookings(ctx context.Context, f models.BookingFilter, p domain.Pagination) (models.BookingPage, error) {
	where := []string{"1=1"}
	var args []any
	if f.PropertyID > 0 {
		where = append(where, "property_id = ?")
		args = append(args, f.PropertyID)
	}
	if f.GuestID > 0 {
		where = append(where, "guest_id = ?")
		args = append(args, f.GuestID)
	}
	if f.HostID > 0 {
		where = append(where, "host_id = ?")
		args = append(args, f.HostID)
	}
	if !f.From.IsZero() {
		where = append(where, "check_out_date > ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "check_in_date < ?")
		args = append(args, f.To)
	}

	page := models.BookingPage{Counts: map[models.BookingStatus]int{}}

	countRows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings WHERE `+strings.Join(where, " AND ")+` GROUP BY status`, args...)
	if err != nil {
		return page, fmt.Errorf("count bookings: %w", err)
	}
	for countRows.Next() {
		var st models.BookingStatus
		var n int
		if err := countRows.Scan(&st, &n); err != nil {
			countRows.Close()
			return page, err
		}
		page.Counts[st] = n
		if f.Status == "" || f.Status == st {
			page.Total += n
		}
	}
	if err := countRows.Err(); err != nil {
		countRows.Close()
		return page, err
	}
	countRows.Close()

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	args = append(args, p.Limit, p.Offset())

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return page, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return page, err
		}
		page.Bookings = append(page.Bookings, b)
	}
	return page, rows.Err()
}

// SweepAbandoned removes pending/pending bookings created before cutoff.
// Candidates are locked first, so a row that moved on meanwhile is never deleted.
func (r BookingRepository) SweepAbandoned(ctx context.Context, cutoff time.Time, dryRun bool) ([]int64, error) {
	const candidates = `
		SELECT id FROM bookings
		WHERE status = 'pending' AND payment_status = 'pending' AND created_at < ?
		ORDER BY id`

	if dryRun {
		return collectIDs(r.DB.QueryContext(ctx, candidates, cutoff.UTC()))
	}

	var ids []int64
	err := intdb.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		ids, err = collectIDs(tx.QueryContext(ctx, candidates+` FOR UPDATE`, cutoff.UTC()))
		if err != nil || len(ids) == 0 {
			return err
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, 0, len(ids)+1)
		for _, id := range ids {
			args = append(args, id)
		}
		args = append(args, cutoff.UTC())
		_, err = tx.ExecContext(ctx, `
			DELETE FROM bookings
			WHERE id IN (`+placeholders+`)
			  AND status = 'pending' AND payment_status = 'pending' AND created_at < ?`, args...)
		if err != nil {
			return fmt.Errorf("delete abandoned: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func collectIDs(rows *sql.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
