package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smiledesk/clinic-platform/internal/store"
)

// identityDB is the slice of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type identityDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists patients and guardians. All writes to those tables go
// through here so the guardian and phone invariants stay enforceable in one
// place.
type Repository struct {
	db identityDB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db identityDB) *Repository {
	return &Repository{db: db}
}

const patientColumns = `id, full_name, phone, email, date_of_birth, patient_type, notes, status, guardian_id, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Phone,
		&p.Email,
		&p.DateOfBirth,
		&p.Type,
		&p.Notes,
		&p.Status,
		&p.GuardianID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPatientByPhone returns the patient owning the phone, or nil when none
// exists.
func (r *Repository) FindPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE phone = $1`, phone)
	p, err := scanPatient(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewPersistenceError("find patient by phone", err)
	}
	return p, nil
}

// FindPatientByID returns the patient or ErrPatientNotFound.
func (r *Repository) FindPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if err == pgx.ErrNoRows {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, store.NewPersistenceError("find patient by id", err)
	}
	return p, nil
}

// InsertPatient writes a new patient row. A unique-violation on phone comes
// back as errDuplicatePhone for the resolver's conflict path; a guardian
// integrity rejection comes back as *GuardianConstraintError.
func (r *Repository) InsertPatient(ctx context.Context, p *Patient) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, full_name, phone, email, date_of_birth, patient_type, notes, status, guardian_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`,
		p.ID,
		p.FullName,
		p.Phone,
		p.Email,
		p.DateOfBirth,
		p.Type,
		p.Notes,
		p.Status,
		p.GuardianID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return errDuplicatePhone
		}
		if constraint, ok := store.IsIntegrityViolation(err); ok && strings.Contains(constraint, "guardian") {
			return &GuardianConstraintError{Constraint: constraint, Err: err}
		}
		return store.NewPersistenceError("insert patient", err)
	}
	return nil
}

// UpdateContact patches the mutable contact/notes fields of a patient.
// Identity fields (phone, type, guardian link) are deliberately not
// updatable here.
func (r *Repository) UpdateContact(ctx context.Context, id uuid.UUID, patch ContactPatch) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE patients
		SET full_name = COALESCE($2, full_name),
		    email = COALESCE($3, email),
		    notes = COALESCE($4, notes),
		    updated_at = now()
		WHERE id = $1
	`, id, patch.FullName, patch.Email, patch.Notes)
	if err != nil {
		return store.NewPersistenceError("update patient contact", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// ListPatients returns patients ordered by creation time, newest first.
func (r *Repository) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+patientColumns+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, store.NewPersistenceError("list patients", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, store.NewPersistenceError("scan patient", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewPersistenceError("list patients", err)
	}
	return out, nil
}

// FindGuardianByPhone returns the guardian owning the phone, or nil when
// none exists.
func (r *Repository) FindGuardianByPhone(ctx context.Context, phone string) (*Guardian, error) {
	var g Guardian
	err := r.db.QueryRow(ctx, `
		SELECT id, full_name, phone, email, created_at
		FROM guardians
		WHERE phone = $1
	`, phone).Scan(&g.ID, &g.FullName, &g.Phone, &g.Email, &g.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewPersistenceError("find guardian by phone", err)
	}
	return &g, nil
}

// InsertGuardian writes a new guardian row, mapping phone uniqueness
// conflicts the same way InsertPatient does.
func (r *Repository) InsertGuardian(ctx context.Context, g *Guardian) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO guardians (id, full_name, phone, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, g.ID, g.FullName, g.Phone, g.Email).Scan(&g.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return errDuplicatePhone
		}
		return store.NewPersistenceError("insert guardian", err)
	}
	return nil
}
