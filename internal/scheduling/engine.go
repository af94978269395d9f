package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smiledesk/clinic-platform/internal/identity"
	"github.com/smiledesk/clinic-platform/internal/observability/metrics"
	"github.com/smiledesk/clinic-platform/internal/store"
	"github.com/smiledesk/clinic-platform/pkg/logging"
)

// PatientResolver yields a stable patient id for a booking submission.
// Resolution must complete before any dependent row is written.
type PatientResolver interface {
	ResolvePatient(ctx context.Context, req identity.ResolvePatientRequest) (*identity.Resolution, error)
}

// Notifier is told about successfully confirmed appointments. Delivery is
// best effort and must never affect the transition outcome.
type Notifier interface {
	AppointmentConfirmed(ctx context.Context, appt *Appointment)
}

// Engine drives booking requests and appointments through their state
// machines. Every transition is a compare-and-swap in the store; a lost race
// surfaces as *InvalidTransitionError, and the confirm + create-appointment
// pairing runs in one transaction so neither entity is ever left without
// the other.
type Engine struct {
	db       schedDB
	repo     *Repository
	resolver PatientResolver
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.ClinicMetrics
	loc      *time.Location
	now      func() time.Time
}

// NewEngine wires the lifecycle engine. Metrics may be nil; loc defaults to
// UTC and decides what "today" means for dispositions.
func NewEngine(db schedDB, repo *Repository, resolver PatientResolver, logger *logging.Logger, m *metrics.ClinicMetrics, loc *time.Location) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		db:       db,
		repo:     repo,
		resolver: resolver,
		logger:   logger,
		metrics:  m,
		loc:      loc,
		now:      time.Now,
	}
}

// WithNotifier attaches a confirmation notifier.
func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

// SubmitBookingInput is a booking form submission: who the patient is plus
// what they are asking for.
type SubmitBookingInput struct {
	Patient         identity.ResolvePatientRequest `json:"patient"`
	ServiceID       uuid.UUID                      `json:"service_id"`
	RequestedDate   time.Time                      `json:"requested_date"`
	RequestedPeriod Period                         `json:"requested_period"`
}

// SubmitBookingResult reports the created request and how the patient
// identity resolved.
type SubmitBookingResult struct {
	Request      *BookingRequest `json:"booking_request"`
	PatientID    uuid.UUID       `json:"patient_id"`
	IsNewPatient bool            `json:"is_new_patient"`
}

// SubmitBooking resolves the patient identity, then creates a pending
// booking request for them. Identity resolution completes first so the
// request always references a stable id.
func (e *Engine) SubmitBooking(ctx context.Context, in SubmitBookingInput) (*SubmitBookingResult, error) {
	if _, err := ParsePeriod(string(in.RequestedPeriod)); err != nil {
		return nil, err
	}
	if in.ServiceID == uuid.Nil {
		return nil, ErrMissingService
	}
	if in.RequestedDate.IsZero() {
		return nil, ErrMissingRequestedDate
	}

	resolution, err := e.resolver.ResolvePatient(ctx, in.Patient)
	if err != nil {
		return nil, err
	}

	request := &BookingRequest{
		ID:              uuid.New(),
		PatientID:       resolution.PatientID,
		ServiceID:       in.ServiceID,
		RequestedDate:   in.RequestedDate,
		RequestedPeriod: in.RequestedPeriod,
		Status:          StatusPending,
	}
	if err := e.repo.CreateBookingRequest(ctx, request); err != nil {
		return nil, err
	}

	e.logger.Info("booking request created",
		"booking_request_id", request.ID,
		"patient_id", resolution.PatientID,
		"new_patient", resolution.IsNew,
		"requested_date", request.RequestedDate.Format("2006-01-02"),
		"requested_period", request.RequestedPeriod,
	)
	return &SubmitBookingResult{
		Request:      request,
		PatientID:    resolution.PatientID,
		IsNewPatient: resolution.IsNew,
	}, nil
}

// Confirm moves a pending or postponed request to confirmed and creates its
// appointment at the finally-agreed start time, atomically. Retrying a
// confirm on an already-confirmed request is a no-op returning the existing
// appointment; losing a concurrent confirm race is an invalid transition.
func (e *Engine) Confirm(ctx context.Context, requestID uuid.UUID, startTime time.Time) (*Appointment, error) {
	if startTime.IsZero() {
		return nil, ErrMissingStartTime
	}

	request, err := e.repo.GetBookingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status == StatusConfirmed {
		// Safe retry: hand back the appointment the earlier confirm made.
		existing, err := e.repo.GetAppointmentByBookingRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			// The pairing invariant says this cannot happen; if it does the
			// store is torn and staff must not get a silent duplicate.
			return nil, store.NewPersistenceError("confirm booking request",
				&InvalidTransitionError{Entity: "booking_request", From: request.Status, To: StatusConfirmed, Reason: "confirmed request has no appointment"})
		}
		return existing, nil
	}

	if !BookingCanTransition(request.Status, StatusConfirmed) {
		e.metrics.ObserveTransition("booking_request", string(request.Status), string(StatusConfirmed), false)
		return nil, &InvalidTransitionError{Entity: "booking_request", From: request.Status, To: StatusConfirmed}
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, store.NewPersistenceError("begin confirm transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	affected, err := e.repo.ConfirmBookingTx(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race: someone else transitioned the request between our
		// read and the guarded write.
		e.metrics.ObserveTransition("booking_request", string(request.Status), string(StatusConfirmed), false)
		current := request.Status
		if latest, err := e.repo.GetBookingRequest(ctx, requestID); err == nil {
			current = latest.Status
		}
		return nil, &InvalidTransitionError{
			Entity: "booking_request",
			From:   current,
			To:     StatusConfirmed,
			Reason: "request was transitioned concurrently",
		}
	}

	appointment := &Appointment{
		ID:               uuid.New(),
		BookingRequestID: requestID,
		PatientID:        request.PatientID,
		ServiceID:        request.ServiceID,
		StartTime:        startTime,
		Status:           StatusConfirmed,
	}
	if err := e.repo.InsertAppointmentTx(ctx, tx, appointment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, store.NewPersistenceError("commit confirm transaction", err)
	}

	e.metrics.ObserveTransition("booking_request", string(request.Status), string(StatusConfirmed), true)
	e.logger.Info("booking request confirmed",
		"booking_request_id", requestID,
		"appointment_id", appointment.ID,
		"start_time", appointment.StartTime,
	)
	if e.notifier != nil {
		e.notifier.AppointmentConfirmed(ctx, appointment)
	}
	return appointment, nil
}

// Postpone records a staff-suggested alternate slot and moves the request to
// postponed. Re-invoking replaces the previous suggestion entirely; omitted
// fields are cleared, not preserved. An empty postponement is pointless but
// still recorded.
func (e *Engine) Postpone(ctx context.Context, requestID uuid.UUID, p Postponement) (*BookingRequest, error) {
	if p.SuggestedPeriod != nil {
		if _, err := ParsePeriod(string(*p.SuggestedPeriod)); err != nil {
			return nil, err
		}
	}

	affected, err := e.repo.PostponeBooking(ctx, requestID, p)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, e.bookingTransitionFailed(ctx, requestID, StatusPostponed)
	}

	request, err := e.repo.GetBookingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveTransition("booking_request", string(StatusPending), string(StatusPostponed), true)
	e.logger.Info("booking request postponed", "booking_request_id", requestID)
	return request, nil
}

// Cancel moves a pending or postponed request to cancelled. Terminal.
func (e *Engine) Cancel(ctx context.Context, requestID uuid.UUID) error {
	affected, err := e.repo.CancelBooking(ctx, requestID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return e.bookingTransitionFailed(ctx, requestID, StatusCancelled)
	}
	e.metrics.ObserveTransition("booking_request", string(StatusPending), string(StatusCancelled), true)
	e.logger.Info("booking request cancelled", "booking_request_id", requestID)
	return nil
}

// MarkCompleted records that the patient showed up for a same-day (or past)
// confirmed appointment.
func (e *Engine) MarkCompleted(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	return e.dispose(ctx, appointmentID, StatusCompleted)
}

// MarkNoShow records that the patient did not show up. Mutually exclusive
// with MarkCompleted.
func (e *Engine) MarkNoShow(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	return e.dispose(ctx, appointmentID, StatusNoShow)
}

func (e *Engine) dispose(ctx context.Context, appointmentID uuid.UUID, to Status) (*Appointment, error) {
	appointment, err := e.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if !AppointmentCanTransition(appointment.Status, to) {
		e.metrics.ObserveTransition("appointment", string(appointment.Status), string(to), false)
		return nil, &InvalidTransitionError{Entity: "appointment", From: appointment.Status, To: to}
	}
	if e.isFutureDay(appointment.StartTime) {
		// The UI only offers dispositions for today, but a stale tab must
		// not be able to finalize a future visit.
		e.metrics.ObserveTransition("appointment", string(appointment.Status), string(to), false)
		return nil, &InvalidTransitionError{
			Entity: "appointment",
			From:   appointment.Status,
			To:     to,
			Reason: "appointment is scheduled in the future",
		}
	}

	affected, err := e.repo.SetAppointmentStatus(ctx, appointmentID, to)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Disposition race: the other button won.
		e.metrics.ObserveTransition("appointment", string(appointment.Status), string(to), false)
		current := appointment.Status
		if latest, err := e.repo.GetAppointment(ctx, appointmentID); err == nil {
			current = latest.Status
		}
		return nil, &InvalidTransitionError{
			Entity: "appointment",
			From:   current,
			To:     to,
			Reason: "appointment was transitioned concurrently",
		}
	}

	e.metrics.ObserveTransition("appointment", string(appointment.Status), string(to), true)
	e.logger.Info("appointment disposed", "appointment_id", appointmentID, "status", to)
	appointment.Status = to
	return appointment, nil
}

// DaySchedule returns the appointments for one calendar day in the clinic
// timezone, active ones first per the triage ordering.
func (e *Engine) DaySchedule(ctx context.Context, day time.Time) ([]*Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, e.loc)
	return e.repo.ListAppointmentsBetween(ctx, start, start.AddDate(0, 0, 1))
}

// bookingTransitionFailed turns a zero-row CAS into the precise error: the
// request either does not exist or sits in a state the edge is not defined
// for.
func (e *Engine) bookingTransitionFailed(ctx context.Context, requestID uuid.UUID, to Status) error {
	request, err := e.repo.GetBookingRequest(ctx, requestID)
	if err != nil {
		return err
	}
	e.metrics.ObserveTransition("booking_request", string(request.Status), string(to), false)
	return &InvalidTransitionError{Entity: "booking_request", From: request.Status, To: to}
}

// isFutureDay reports whether t falls on a calendar day after today in the
// clinic timezone. Past days stay disposable so staff can close out missed
// entries.
func (e *Engine) isFutureDay(t time.Time) bool {
	now := e.now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	return !t.In(e.loc).Before(today.AddDate(0, 0, 1))
}
