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

type PropertyRepository struct {
	DB *sql.DB
}

func (r PropertyRepository) GetProperty(ctx context.Context, id int64) (models.Property, error) {
	var p models.Property
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, host_id, title, COALESCE(address,''), COALESCE(city,''), max_guests, is_active
		FROM properties WHERE id = ? LIMIT 1`, id).Scan(
		&p.ID, &p.HostID, &p.Title, &p.Address, &p.City, &p.MaxGuests, &p.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.NotFoundError{Resource: "property", Err: err}
	}
	if err != nil {
		return p, fmt.Errorf("get property %d: %w", id, err)
	}
	return p, nil
}

type ProfileRepository struct {
	DB *sql.DB
}

const profileColumns = `id, email, COALESCE(full_name,''), role, COALESCE(password_hash,''), created_at`

func (r ProfileRepository) scanOne(row *sql.Row) (models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.NotFoundError{Resource: "profile", Err: err}
	}
	if err != nil {
		return p, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r ProfileRepository) GetProfile(ctx context.Context, id int64) (models.Profile, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ? LIMIT 1`, id))
}

func (r ProfileRepository) GetProfileByEmail(ctx context.Context, email string) (models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = ? LIMIT 1`, email))
}

func (r ProfileRepository) CreateProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO profiles (email, full_name, role, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Email, p.FullName, p.Role, p.PasswordHash, now, now)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return p, domain.ConflictError{Resource: "profile", Msg: "email already registered", Err: err}
		}
		return p, fmt.Errorf("insert profile: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return p, fmt.Errorf("insert profile id: %w", err)
	}
	p.CreatedAt = now
	return p, nil
}
