package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhone is returned when the phone identity key is missing.
	ErrInvalidPhone = errors.New("identity: phone is required")

	// ErrInvalidName is returned when the full name is missing.
	ErrInvalidName = errors.New("identity: full name is required")

	// ErrInvalidPatientType is returned for a patient type outside adult/child.
	ErrInvalidPatientType = errors.New("identity: patient type must be adult or child")

	// ErrMissingGuardian is returned when a child patient cannot be linked
	// to a guardian. Resolution stops; no patient row is written.
	ErrMissingGuardian = errors.New("identity: child patient requires a guardian")

	// ErrPatientNotFound is returned by lookups and updates on unknown ids.
	ErrPatientNotFound = errors.New("identity: patient not found")

	// errDuplicatePhone signals a lost lookup-then-insert race. It never
	// leaves the package: the resolver converts it into a re-lookup.
	errDuplicatePhone = errors.New("identity: phone already registered")
)

// GuardianConstraintError reports that the store rejected a guardian-less
// child insert. Kept distinct from a plain persistence failure so operators
// get a precise message instead of a raw constraint name.
type GuardianConstraintError struct {
	Constraint string
	Err        error
}

func (e *GuardianConstraintError) Error() string {
	return fmt.Sprintf("identity: guardian integrity rejected by store (%s): %v", e.Constraint, e.Err)
}

func (e *GuardianConstraintError) Unwrap() error { return e.Err }
