package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository stores the service catalog in the relational database.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListActive returns the bookable services, alphabetically.
func (r *Repository) ListActive(ctx context.Context) ([]Service, error) {
	return r.list(ctx, `
		SELECT id, name, description, duration_minutes, price_cents, active, created_at, updated_at
		FROM services WHERE active ORDER BY name ASC`)
}

// ListAll returns every service including deactivated ones, for staff.
func (r *Repository) ListAll(ctx context.Context) ([]Service, error) {
	return r.list(ctx, `
		SELECT id, name, description, duration_minutes, price_cents, active, created_at, updated_at
		FROM services ORDER BY name ASC`)
}

func (r *Repository) list(ctx context.Context, query string) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("services: list: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.DurationMinutes,
			&s.PriceCents, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("services: scan: %w", err)
		}
		out = append(out, s)
	}
	if out == nil {
		out = []Service{}
	}
	return out, rows.Err()
}

// Get returns one service or ErrServiceNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Service, error) {
	var s Service
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, duration_minutes, price_cents, active, created_at, updated_at
		FROM services WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.DurationMinutes,
			&s.PriceCents, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("services: get: %w", err)
	}
	return &s, nil
}

// Upsert creates or updates a service. A missing id means create.
func (r *Repository) Upsert(ctx context.Context, s *Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	s.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (id, name, description, duration_minutes, price_cents, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name, description = EXCLUDED.description,
		    duration_minutes = EXCLUDED.duration_minutes, price_cents = EXCLUDED.price_cents,
		    active = EXCLUDED.active, updated_at = $7`,
		s.ID, s.Name, s.Description, s.DurationMinutes, s.PriceCents, s.Active, now)
	if err != nil {
		return fmt.Errorf("services: upsert: %w", err)
	}
	return nil
}

// Deactivate hides a service from new bookings without deleting history.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE services SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("services: deactivate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("services: deactivate: %w", err)
	}
	if affected == 0 {
		return ErrServiceNotFound
	}
	return nil
}
