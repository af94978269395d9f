package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("insert patient", cause)

	if !errors.Is(err, cause) {
		t.Error("PersistenceError should unwrap to its cause")
	}
	var pErr *PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatal("errors.As should find *PersistenceError")
	}
	if pErr.Op != "insert patient" {
		t.Errorf("Op = %q", pErr.Op)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "patients_phone_key"}
	if !IsUniqueViolation(unique) {
		t.Error("23505 should be a unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("wrapped: %w", unique)) {
		t.Error("wrapped 23505 should still be detected")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is not a unique violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Error("non-pg errors are not unique violations")
	}
}

func TestIsIntegrityViolation(t *testing.T) {
	cases := []struct {
		err       error
		wantName  string
		wantMatch bool
	}{
		{&pgconn.PgError{Code: "23503", ConstraintName: "patients_guardian_id_fkey"}, "patients_guardian_id_fkey", true},
		{&pgconn.PgError{Code: "23514", ConstraintName: "patients_child_guardian_check"}, "patients_child_guardian_check", true},
		{&pgconn.PgError{Code: "23505", ConstraintName: "patients_phone_key"}, "", false},
		{errors.New("plain"), "", false},
	}
	for _, tc := range cases {
		name, ok := IsIntegrityViolation(tc.err)
		if ok != tc.wantMatch || name != tc.wantName {
			t.Errorf("IsIntegrityViolation(%v) = (%q, %v), want (%q, %v)",
				tc.err, name, ok, tc.wantName, tc.wantMatch)
		}
	}
}
