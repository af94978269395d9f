package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PatientType distinguishes adults from minors.
type PatientType string

const (
	PatientTypeAdult PatientType = "adult"
	PatientTypeChild PatientType = "child"
)

// PatientStatusActive is the lifecycle status every resolved patient starts in.
const PatientStatusActive = "active"

// Patient is a person receiving care. Phone is the identity key; the
// database enforces its uniqueness.
type Patient struct {
	ID          uuid.UUID   `json:"id"`
	FullName    string      `json:"full_name"`
	Phone       string      `json:"phone"`
	Email       *string     `json:"email,omitempty"`
	DateOfBirth *time.Time  `json:"date_of_birth,omitempty"`
	Type        PatientType `json:"patient_type"`
	Notes       *string     `json:"notes,omitempty"`
	Status      string      `json:"status"`
	GuardianID  *uuid.UUID  `json:"guardian_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Guardian is the responsible adult for one or more child patients.
// Guardian identity is first-write-wins: later bookings never update it.
type Guardian struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GuardianDetails carries the fields needed to resolve a guardian.
type GuardianDetails struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// Validate checks the guardian identifying fields.
func (d *GuardianDetails) Validate() error {
	if strings.TrimSpace(d.FullName) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(d.Phone) == "" {
		return ErrInvalidPhone
	}
	return nil
}

// ResolvePatientRequest is the input to Resolver.ResolvePatient.
type ResolvePatientRequest struct {
	Phone       string           `json:"phone"`
	FullName    string           `json:"full_name"`
	Email       string           `json:"email"`
	DateOfBirth *time.Time       `json:"date_of_birth,omitempty"`
	Type        PatientType      `json:"patient_type"`
	GuardianID  *uuid.UUID       `json:"guardian_id,omitempty"`
	Guardian    *GuardianDetails `json:"guardian,omitempty"`
	Notes       string           `json:"notes"`
}

// Validate checks the patient identifying fields and defaults the type.
func (r *ResolvePatientRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" {
		return ErrInvalidPhone
	}
	if strings.TrimSpace(r.FullName) == "" {
		return ErrInvalidName
	}
	switch r.Type {
	case "":
		r.Type = PatientTypeAdult
	case PatientTypeAdult, PatientTypeChild:
	default:
		return ErrInvalidPatientType
	}
	return nil
}

// Resolution is the outcome of a patient resolution.
type Resolution struct {
	PatientID uuid.UUID `json:"patient_id"`
	IsNew     bool      `json:"is_new"`
}

// ContactPatch updates the only patient fields staff are allowed to edit
// after creation. Nil fields are left untouched.
type ContactPatch struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}
