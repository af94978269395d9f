package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrBookingNotFound is returned for operations on unknown booking
	// request ids.
	ErrBookingNotFound = errors.New("scheduling: booking request not found")

	// ErrAppointmentNotFound is returned for operations on unknown
	// appointment ids.
	ErrAppointmentNotFound = errors.New("scheduling: appointment not found")

	// ErrInvalidPeriod is returned for a day-part outside the enumeration.
	ErrInvalidPeriod = errors.New("scheduling: period must be morning, afternoon, evening or night")

	// ErrMissingService is returned when a submission names no service.
	ErrMissingService = errors.New("scheduling: service is required")

	// ErrMissingRequestedDate is returned when a submission carries no date.
	ErrMissingRequestedDate = errors.New("scheduling: requested date is required")

	// ErrMissingStartTime is returned when a confirm carries no agreed
	// start time.
	ErrMissingStartTime = errors.New("scheduling: confirmed start time is required")

	// ErrInvalidTransition matches every *InvalidTransitionError via
	// errors.Is.
	ErrInvalidTransition = errors.New("scheduling: invalid transition")
)

// InvalidTransitionError names the attempted edge that a state machine
// rejected, including lost compare-and-swap races. The entity is left
// unchanged and the caller decides what to do next; the engine never
// retries.
type InvalidTransitionError struct {
	Entity string
	From   Status
	To     Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("scheduling: invalid %s transition %s -> %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
