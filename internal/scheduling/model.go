package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status is the shared lifecycle vocabulary. Booking requests and
// appointments each use the subset relevant to their role.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPostponed Status = "postponed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Period is the coarse day-part bucket used for requested and suggested
// slots instead of an exact time.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
	PeriodNight     Period = "night"
)

// ParsePeriod validates a day-part name.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodMorning, PeriodAfternoon, PeriodEvening, PeriodNight:
		return Period(s), nil
	}
	return "", ErrInvalidPeriod
}

// bookingTransitions lists the edges staff and patient actions may take a
// booking request through. Missing source states (cancelled, confirmed) are
// terminal for the request. postponed -> postponed is the idempotent
// replace of a prior suggestion.
var bookingTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusPostponed, StatusCancelled},
	StatusPostponed: {StatusConfirmed, StatusPostponed, StatusCancelled},
}

// appointmentTransitions lists the disposition edges. completed and no_show
// are terminal.
var appointmentTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed},
	StatusConfirmed: {StatusCompleted, StatusNoShow},
}

// BookingCanTransition reports whether a booking request may move from one
// status to another.
func BookingCanTransition(from, to Status) bool {
	return containsStatus(bookingTransitions[from], to)
}

// AppointmentCanTransition reports whether an appointment may move from one
// status to another.
func AppointmentCanTransition(from, to Status) bool {
	return containsStatus(appointmentTransitions[from], to)
}

func containsStatus(list []Status, s Status) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

// BookingRequest is a patient's ask for a visit on a date and day-part. It
// is created pending and driven by staff actions until terminal.
type BookingRequest struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	RequestedDate   time.Time  `json:"requested_date"`
	RequestedPeriod Period     `json:"requested_period"`
	Status          Status     `json:"status"`
	SuggestedDate   *time.Time `json:"suggested_date,omitempty"`
	SuggestedPeriod *Period    `json:"suggested_period,omitempty"`
	StaffNotes      *string    `json:"staff_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Appointment is the visit derived from a confirmed booking request.
type Appointment struct {
	ID               uuid.UUID `json:"id"`
	BookingRequestID uuid.UUID `json:"booking_request_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	ServiceID        uuid.UUID `json:"service_id"`
	StartTime        time.Time `json:"start_time"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Active reports whether the appointment still needs staff attention.
func (a *Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// Postponement is a staff-suggested alternate slot plus notes for the
// patient. Re-postponing replaces the previous suggestion wholesale: fields
// left nil here clear the stored ones.
type Postponement struct {
	SuggestedDate   *time.Time `json:"suggested_date,omitempty"`
	SuggestedPeriod *Period    `json:"suggested_period,omitempty"`
	StaffNotes      *string    `json:"staff_notes,omitempty"`
}
