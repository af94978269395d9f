package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/smiledesk/clinic-platform/internal/observability/metrics"
	"github.com/smiledesk/clinic-platform/internal/store"
	"github.com/smiledesk/clinic-platform/pkg/logging"
)

// Resolver maps identifying fields to stable patient and guardian ids,
// creating rows on first sight. Phone is the identity key; the database
// unique constraint is the authority of record, and the lookup-then-insert
// here is only an optimization. Losing the insert race is recovered by
// re-running the lookup, never surfaced to callers.
type Resolver struct {
	repo    *Repository
	logger  *logging.Logger
	metrics *metrics.ClinicMetrics
}

// NewResolver creates a resolver. Metrics may be nil.
func NewResolver(repo *Repository, logger *logging.Logger, m *metrics.ClinicMetrics) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{repo: repo, logger: logger, metrics: m}
}

// ResolveGuardian returns the id of the guardian owning the phone, creating
// the guardian when unseen. Existing guardian data is authoritative and is
// never updated from later submissions.
func (r *Resolver) ResolveGuardian(ctx context.Context, details GuardianDetails) (uuid.UUID, error) {
	if err := details.Validate(); err != nil {
		return uuid.Nil, err
	}

	existing, err := r.repo.FindGuardianByPhone(ctx, details.Phone)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		r.metrics.ObserveResolution("guardian", "existing")
		return existing.ID, nil
	}

	guardian := &Guardian{
		ID:       uuid.New(),
		FullName: details.FullName,
		Phone:    details.Phone,
		Email:    optional(details.Email),
	}
	err = r.repo.InsertGuardian(ctx, guardian)
	if errors.Is(err, errDuplicatePhone) {
		return r.recoverGuardianConflict(ctx, details.Phone)
	}
	if err != nil {
		return uuid.Nil, err
	}

	r.metrics.ObserveResolution("guardian", "created")
	r.logger.Info("guardian created", "guardian_id", guardian.ID, "phone", details.Phone)
	return guardian.ID, nil
}

// ResolvePatient returns the id of the patient owning the phone, creating a
// new patient when unseen. A child patient must end up with a guardian link:
// either a caller-supplied id, or one resolved from guardian details. Without
// either, resolution fails with ErrMissingGuardian before anything is written.
func (r *Resolver) ResolvePatient(ctx context.Context, req ResolvePatientRequest) (*Resolution, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := r.repo.FindPatientByPhone(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Existing data is authoritative; a repeat booking never mutates it.
		r.metrics.ObserveResolution("patient", "existing")
		return &Resolution{PatientID: existing.ID, IsNew: false}, nil
	}

	guardianID := req.GuardianID
	if req.Type == PatientTypeChild && guardianID == nil {
		if req.Guardian == nil {
			return nil, ErrMissingGuardian
		}
		id, err := r.ResolveGuardian(ctx, *req.Guardian)
		if err != nil {
			return nil, err
		}
		guardianID = &id
	}

	patient := &Patient{
		ID:          uuid.New(),
		FullName:    req.FullName,
		Phone:       req.Phone,
		Email:       optional(req.Email),
		DateOfBirth: req.DateOfBirth,
		Type:        req.Type,
		Notes:       optional(req.Notes),
		Status:      PatientStatusActive,
	}
	if req.Type == PatientTypeChild {
		patient.GuardianID = guardianID
	}

	err = r.repo.InsertPatient(ctx, patient)
	if errors.Is(err, errDuplicatePhone) {
		return r.recoverPatientConflict(ctx, req.Phone)
	}
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveResolution("patient", "created")
	r.logger.Info("patient created",
		"patient_id", patient.ID,
		"patient_type", patient.Type,
		"phone", patient.Phone,
	)
	return &Resolution{PatientID: patient.ID, IsNew: true}, nil
}

// recoverPatientConflict handles the lost insert race: a concurrent
// submission won the unique constraint, so its row is the identity.
func (r *Resolver) recoverPatientConflict(ctx context.Context, phone string) (*Resolution, error) {
	winner, err := r.repo.FindPatientByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		// Insert says the phone exists but lookup disagrees; give up rather
		// than loop.
		return nil, store.NewPersistenceError("patient conflict re-lookup", errDuplicatePhone)
	}
	r.metrics.ObserveResolution("patient", "conflict_recovered")
	r.logger.Warn("patient insert lost uniqueness race, reusing winner",
		"patient_id", winner.ID, "phone", phone)
	return &Resolution{PatientID: winner.ID, IsNew: false}, nil
}

func (r *Resolver) recoverGuardianConflict(ctx context.Context, phone string) (uuid.UUID, error) {
	winner, err := r.repo.FindGuardianByPhone(ctx, phone)
	if err != nil {
		return uuid.Nil, err
	}
	if winner == nil {
		return uuid.Nil, store.NewPersistenceError("guardian conflict re-lookup", errDuplicatePhone)
	}
	r.metrics.ObserveResolution("guardian", "conflict_recovered")
	r.logger.Warn("guardian insert lost uniqueness race, reusing winner",
		"guardian_id", winner.ID, "phone", phone)
	return winner.ID, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
