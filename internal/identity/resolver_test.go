package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/smiledesk/clinic-platform/pkg/logging"
)

const selectPatientByPhone = `SELECT id, full_name, phone, email, date_of_birth, patient_type, notes, status, guardian_id, created_at, updated_at FROM patients WHERE phone = \$1`
const selectGuardianByPhone = `SELECT id, full_name, phone, email,\s+created_at\s+FROM guardians\s+WHERE phone = \$1`

func patientColumnsList() []string {
	return []string{"id", "full_name", "phone", "email", "date_of_birth", "patient_type", "notes", "status", "guardian_id", "created_at", "updated_at"}
}

func patientRow(id uuid.UUID, phone string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(patientColumnsList()).
		AddRow(id, "Sara Adel", phone, nil, nil, PatientTypeAdult, nil, "active", nil, now, now)
}

func newTestResolver(mock pgxmock.PgxPoolIface) *Resolver {
	return NewResolver(NewRepositoryWithDB(mock), logging.Default(), nil)
}

func TestResolvePatient_ExistingPhoneIsAuthoritative(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	existingID := uuid.New()
	mock.ExpectQuery(selectPatientByPhone).
		WithArgs("+201001112233").
		WillReturnRows(patientRow(existingID, "+201001112233"))

	resolver := newTestResolver(mock)
	res, err := resolver.ResolvePatient(context.Background(), ResolvePatientRequest{
		Phone:    "+201001112233",
		FullName: "A Different Name",
	})
	if err != nil {
		t.Fatalf("ResolvePatient failed: %v", err)
	}
	if res.PatientID != existingID {
		t.Errorf("PatientID = %s, want %s", res.PatientID, existingID)
	}
	if res.IsNew {
		t.Error("IsNew = true, want false for an existing phone")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolvePatient_CreatesAdult(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(selectPatientByPhone).
		WithArgs("+201005556677").
		WillReturnRows(pgxmock.NewRows(patientColumnsList()))
	mock.ExpectQuery(`INSERT INTO patients`).
		WithArgs(pgxmock.AnyArg(), "Omar Fathy", "+201005556677", pgxmock.AnyArg(),
			pgxmock.AnyArg(), PatientTypeAdult, pgxmock.AnyArg(), "active", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	resolver := newTestResolver(mock)
	res, err := resolver.ResolvePatient(context.Background(), ResolvePatientRequest{
		Phone:    "+201005556677",
		FullName: "Omar Fathy",
	})
	if err != nil {
		t.Fatalf("ResolvePatient failed: %v", err)
	}
	if !res.IsNew {
		t.Error("IsNew = false, want true for an unseen phone")
	}
	if res.PatientID == uuid.Nil {
		t.Error("expected a generated patient id")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolvePatient_ChildWithoutGuardianFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(selectPatientByPhone).
		WithArgs("+201009998877").
		WillReturnRows(pgxmock.NewRows(patientColumnsList()))

	resolver := newTestResolver(mock)
	_, err = resolver.ResolvePatient(context.Background(), ResolvePatientRequest{
		Phone:    "+201009998877",
		FullName: "Lina Samir",
		Type:     PatientTypeChild,
	})
	if !errors.Is(err, ErrMissingGuardian) {
		t.Fatalf("error = %v, want ErrMissingGuardian", err)
	}

	// No insert may have been attempted.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolvePatient_ChildResolvesGuardianFromDetails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(selectPatientByPhone).
		WithArgs("+201002223344").
		WillReturnRows(pgxmock.NewRows(patientColumnsList()))
	mock.ExpectQuery(selectGuardianByPhone).
		WithArgs("+201004445566").
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "phone", "email", "created_at"}))
	mock.ExpectQuery(`INSERT INTO guardians`).
		WithArgs(pgxmock.AnyArg(), "Hala Mostafa", "+201004445566", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`INSERT INTO patients`).
		WithArgs(pgxmock.AnyArg(), "Yousef Mostafa", "+201002223344", pgxmock.AnyArg(),
			pgxmock.AnyArg(), PatientTypeChild, pgxmock.AnyArg(), "active", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	resolver := newTestResolver(mock)
	res, err := resolver.ResolvePatient(context.Background(), ResolvePatientRequest{
		Phone:    "+201002223344",
		FullName: "Yousef Mostafa",
		Type:     PatientTypeChild,
		Guardian: &GuardianDetails{FullName: "Hala Mostafa", Phone: "+201004445566"},
	})
	if err != nil {
		t.Fatalf("ResolvePatient failed: %v", err)
	}
	if !res.IsNew {
		t.Error("IsNew = false, want true")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolvePatient_ConflictRecoversToWinner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	winnerID := uuid.New()
	mock.ExpectQuery(selectPatientByPhone).
		WithArgs("+201007778899").
		WillReturnRows(pgxmock.NewRows(patientColumnsList()))
	mock.ExpectQuery(`INSERT INTO patients`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "patients_phone_key"})
	mock.ExpectQuery(selectPatientByPhone).
		WithArgs("+201007778899").
		WillReturnRows(patientRow(winnerID, "+201007778899"))

	resolver := newTestResolver(mock)
	res, err := resolver.ResolvePatient(context.Background(), ResolvePatientRequest{
		Phone:    "+201007778899",
		FullName: "Nour Hassan",
	})
	if err != nil {
		t.Fatalf("ResolvePatient failed: %v", err)
	}
	if res.PatientID != winnerID {
		t.Errorf("PatientID = %s, want the winner %s", res.PatientID, winnerID)
	}
	if res.IsNew {
		t.Error("IsNew = true, want false after losing the insert race")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolvePatient_GuardianConstraintSurfacedDistinctly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	guardianID := uuid.New()
	mock.ExpectQuery(selectPatientByPhone).
		WithArgs("+201003334455").
		WillReturnRows(pgxmock.NewRows(patientColumnsList()))
	mock.ExpectQuery(`INSERT INTO patients`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "patients_guardian_id_fkey"})

	resolver := newTestResolver(mock)
	_, err = resolver.ResolvePatient(context.Background(), ResolvePatientRequest{
		Phone:      "+201003334455",
		FullName:   "Malak Tarek",
		Type:       PatientTypeChild,
		GuardianID: &guardianID,
	})

	var constraintErr *GuardianConstraintError
	if !errors.As(err, &constraintErr) {
		t.Fatalf("error = %v, want *GuardianConstraintError", err)
	}
	if constraintErr.Constraint != "patients_guardian_id_fkey" {
		t.Errorf("Constraint = %q", constraintErr.Constraint)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveGuardian_FirstWriteWins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	existingID := uuid.New()
	mock.ExpectQuery(selectGuardianByPhone).
		WithArgs("+201006667788").
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "phone", "email", "created_at"}).
			AddRow(existingID, "Mona Said", "+201006667788", nil, time.Now()))

	resolver := newTestResolver(mock)
	// A later submission with different details must not update the record.
	id, err := resolver.ResolveGuardian(context.Background(), GuardianDetails{
		FullName: "M. Said",
		Phone:    "+201006667788",
		Email:    "new@example.com",
	})
	if err != nil {
		t.Fatalf("ResolveGuardian failed: %v", err)
	}
	if id != existingID {
		t.Errorf("guardian id = %s, want %s", id, existingID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveGuardian_ConflictRecoversToWinner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	winnerID := uuid.New()
	mock.ExpectQuery(selectGuardianByPhone).
		WithArgs("+201008889900").
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "phone", "email", "created_at"}))
	mock.ExpectQuery(`INSERT INTO guardians`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "guardians_phone_key"})
	mock.ExpectQuery(selectGuardianByPhone).
		WithArgs("+201008889900").
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "phone", "email", "created_at"}).
			AddRow(winnerID, "Khaled Amin", "+201008889900", nil, time.Now()))

	resolver := newTestResolver(mock)
	id, err := resolver.ResolveGuardian(context.Background(), GuardianDetails{
		FullName: "Khaled Amin",
		Phone:    "+201008889900",
	})
	if err != nil {
		t.Fatalf("ResolveGuardian failed: %v", err)
	}
	if id != winnerID {
		t.Errorf("guardian id = %s, want the winner %s", id, winnerID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
