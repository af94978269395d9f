package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smiledesk/clinic-platform/internal/identity"
	"github.com/smiledesk/clinic-platform/internal/scheduling"
	"github.com/smiledesk/clinic-platform/pkg/logging"
)

// PatientDirectory resolves patient ids to contact details.
type PatientDirectory interface {
	FindPatientByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// Service emails patients about confirmed appointments. Delivery is best
// effort: every failure is logged and swallowed so a notification problem
// never rolls back a transition.
type Service struct {
	email    EmailSender
	patients PatientDirectory
	logger   *logging.Logger
}

func NewService(email EmailSender, patients PatientDirectory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, patients: patients, logger: logger}
}

// AppointmentConfirmed implements scheduling.Notifier.
func (s *Service) AppointmentConfirmed(ctx context.Context, appt *scheduling.Appointment) {
	if s.email == nil {
		return
	}

	patient, err := s.patients.FindPatientByID(ctx, appt.PatientID)
	if err != nil {
		s.logger.Error("confirmation email: patient lookup failed",
			"error", err, "appointment_id", appt.ID)
		return
	}
	if patient.Email == nil {
		s.logger.Debug("confirmation email skipped, patient has no email",
			"patient_id", patient.ID)
		return
	}

	msg := EmailMessage{
		To:      *patient.Email,
		ToName:  patient.FullName,
		Subject: "Your appointment is confirmed",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour appointment is confirmed for %s.\n\nIf the time no longer works, please call the clinic to reschedule.",
			patient.FullName,
			appt.StartTime.Format("Monday, 2 January 2006 at 15:04"),
		),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("confirmation email failed",
			"error", err, "appointment_id", appt.ID)
		return
	}
	s.logger.Info("confirmation email sent",
		"appointment_id", appt.ID, "patient_id", patient.ID)
}
