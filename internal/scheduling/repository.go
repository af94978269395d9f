package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smiledesk/clinic-platform/internal/store"
)

// schedDB is the slice of pgxpool.Pool the repository and engine need.
// pgxmock satisfies it in tests.
type schedDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists booking requests and appointments. Every status write
// is a compare-and-swap guarded on the expected source status: zero affected
// rows means the caller lost the race and must report, not retry.
type Repository struct {
	db schedDB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db schedDB) *Repository {
	return &Repository{db: db}
}

const bookingColumns = `id, patient_id, service_id, requested_date, requested_period, status, suggested_date, suggested_period, staff_notes, created_at, updated_at`

func scanBooking(row pgx.Row) (*BookingRequest, error) {
	var b BookingRequest
	err := row.Scan(
		&b.ID,
		&b.PatientID,
		&b.ServiceID,
		&b.RequestedDate,
		&b.RequestedPeriod,
		&b.Status,
		&b.SuggestedDate,
		&b.SuggestedPeriod,
		&b.StaffNotes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBookingRequest inserts a new pending request.
func (r *Repository) CreateBookingRequest(ctx context.Context, b *BookingRequest) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO booking_requests (id, patient_id, service_id, requested_date, requested_period, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`,
		b.ID,
		b.PatientID,
		b.ServiceID,
		b.RequestedDate,
		b.RequestedPeriod,
		b.Status,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return store.NewPersistenceError("insert booking request", err)
	}
	return nil
}

// GetBookingRequest returns the request or ErrBookingNotFound.
func (r *Repository) GetBookingRequest(ctx context.Context, id uuid.UUID) (*BookingRequest, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM booking_requests WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err == pgx.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, store.NewPersistenceError("get booking request", err)
	}
	return b, nil
}

// ListBookingRequests returns requests, optionally filtered by status,
// oldest first so staff work the queue in arrival order.
func (r *Repository) ListBookingRequests(ctx context.Context, status *Status, limit, offset int) ([]*BookingRequest, error) {
	query := `SELECT ` + bookingColumns + ` FROM booking_requests`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at ASC`
	if status != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, store.NewPersistenceError("list booking requests", err)
	}
	defer rows.Close()

	var out []*BookingRequest
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, store.NewPersistenceError("scan booking request", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewPersistenceError("list booking requests", err)
	}
	return out, nil
}

// PostponeBooking replaces the suggestion and moves the request to
// postponed, from pending or postponed only. The whole suggestion is
// overwritten: nil fields clear stored values. Returns affected rows.
func (r *Repository) PostponeBooking(ctx context.Context, id uuid.UUID, p Postponement) (int64, error) {
	var date, period, notes any
	if p.SuggestedDate != nil {
		date = *p.SuggestedDate
	}
	if p.SuggestedPeriod != nil {
		period = *p.SuggestedPeriod
	}
	if p.StaffNotes != nil {
		notes = *p.StaffNotes
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE booking_requests
		SET status = 'postponed',
		    suggested_date = $2,
		    suggested_period = $3,
		    staff_notes = $4,
		    updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'postponed')
	`, id, date, period, notes)
	if err != nil {
		return 0, store.NewPersistenceError("postpone booking request", err)
	}
	return tag.RowsAffected(), nil
}

// CancelBooking moves the request to cancelled, from pending or postponed
// only. Returns affected rows.
func (r *Repository) CancelBooking(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE booking_requests
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'postponed')
	`, id)
	if err != nil {
		return 0, store.NewPersistenceError("cancel booking request", err)
	}
	return tag.RowsAffected(), nil
}

// ConfirmBookingTx flips the request to confirmed inside the caller's
// transaction, guarded on a still-confirmable status. Returns affected rows.
func (r *Repository) ConfirmBookingTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE booking_requests
		SET status = 'confirmed', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'postponed')
	`, id)
	if err != nil {
		return 0, store.NewPersistenceError("confirm booking request", err)
	}
	return tag.RowsAffected(), nil
}

// InsertAppointmentTx writes the appointment paired with a confirm, inside
// the same transaction so the two either both land or both roll back.
func (r *Repository) InsertAppointmentTx(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, booking_request_id, patient_id, service_id, start_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`,
		a.ID,
		a.BookingRequestID,
		a.PatientID,
		a.ServiceID,
		a.StartTime,
		a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return store.NewPersistenceError("insert appointment", err)
	}
	return nil
}

const appointmentColumns = `id, booking_request_id, patient_id, service_id, start_time, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.BookingRequestID,
		&a.PatientID,
		&a.ServiceID,
		&a.StartTime,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAppointment returns the appointment or ErrAppointmentNotFound.
func (r *Repository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err == pgx.ErrNoRows {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, store.NewPersistenceError("get appointment", err)
	}
	return a, nil
}

// GetAppointmentByBookingRequest returns the appointment derived from a
// request, or nil when none exists yet.
func (r *Repository) GetAppointmentByBookingRequest(ctx context.Context, bookingID uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE booking_request_id = $1`, bookingID)
	a, err := scanAppointment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewPersistenceError("get appointment by booking request", err)
	}
	return a, nil
}

// SetAppointmentStatus applies a disposition guarded on the appointment
// still being confirmed. Returns affected rows.
func (r *Repository) SetAppointmentStatus(ctx context.Context, id uuid.UUID, to Status) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'confirmed'
	`, id, to)
	if err != nil {
		return 0, store.NewPersistenceError("set appointment status", err)
	}
	return tag.RowsAffected(), nil
}

// ListAppointmentsBetween returns the appointments starting in [from, to),
// still-actionable ones first, each partition ordered by start time
// ascending so staff triage the actionable items before the finalized ones.
func (r *Repository) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY CASE WHEN status IN ('pending', 'confirmed') THEN 0 ELSE 1 END, start_time ASC
	`, from, to)
	if err != nil {
		return nil, store.NewPersistenceError("list appointments", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, store.NewPersistenceError("scan appointment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewPersistenceError("list appointments", err)
	}
	return out, nil
}
