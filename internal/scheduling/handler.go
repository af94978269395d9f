package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smiledesk/clinic-platform/internal/identity"
	"github.com/smiledesk/clinic-platform/pkg/logging"
)

const dateLayout = "2006-01-02"

// Handler exposes the booking intake and staff lifecycle endpoints.
type Handler struct {
	engine *Engine
	repo   *Repository
	logger *logging.Logger
}

func NewHandler(engine *Engine, repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, repo: repo, logger: logger}
}

type submitPatientPayload struct {
	FullName    string                    `json:"full_name"`
	Phone       string                    `json:"phone"`
	Email       string                    `json:"email"`
	DateOfBirth string                    `json:"date_of_birth"`
	PatientType string                    `json:"patient_type"`
	GuardianID  string                    `json:"guardian_id"`
	Guardian    *identity.GuardianDetails `json:"guardian"`
	Notes       string                    `json:"notes"`
}

type submitBookingPayload struct {
	Patient         submitPatientPayload `json:"patient"`
	ServiceID       string               `json:"service_id"`
	RequestedDate   string               `json:"requested_date"`
	RequestedPeriod string               `json:"requested_period"`
}

// SubmitBooking handles POST /api/bookings, the public booking form intake.
func (h *Handler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	var payload submitBookingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input, err := payload.toInput()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.engine.SubmitBooking(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err, "failed to submit booking")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (p *submitBookingPayload) toInput() (SubmitBookingInput, error) {
	var in SubmitBookingInput

	serviceID, err := uuid.Parse(p.ServiceID)
	if err != nil {
		return in, errors.New("invalid service_id")
	}
	requestedDate, err := time.Parse(dateLayout, p.RequestedDate)
	if err != nil {
		return in, errors.New("requested_date must be YYYY-MM-DD")
	}

	patient := identity.ResolvePatientRequest{
		FullName: p.Patient.FullName,
		Phone:    p.Patient.Phone,
		Email:    p.Patient.Email,
		Type:     identity.PatientType(p.Patient.PatientType),
		Guardian: p.Patient.Guardian,
		Notes:    p.Patient.Notes,
	}
	if p.Patient.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, p.Patient.DateOfBirth)
		if err != nil {
			return in, errors.New("date_of_birth must be YYYY-MM-DD")
		}
		patient.DateOfBirth = &dob
	}
	if p.Patient.GuardianID != "" {
		guardianID, err := uuid.Parse(p.Patient.GuardianID)
		if err != nil {
			return in, errors.New("invalid guardian_id")
		}
		patient.GuardianID = &guardianID
	}

	in = SubmitBookingInput{
		Patient:         patient,
		ServiceID:       serviceID,
		RequestedDate:   requestedDate,
		RequestedPeriod: Period(p.RequestedPeriod),
	}
	return in, nil
}

// ListBookingRequestsResponse is the payload for GET /admin/bookings.
type ListBookingRequestsResponse struct {
	Requests []*BookingRequest `json:"booking_requests"`
	Count    int               `json:"count"`
}

// ListBookingRequests handles GET /admin/bookings?status=pending.
func (h *Handler) ListBookingRequests(w http.ResponseWriter, r *http.Request) {
	var status *Status
	if v := r.URL.Query().Get("status"); v != "" {
		s := Status(v)
		switch s {
		case StatusPending, StatusConfirmed, StatusPostponed, StatusCancelled:
			status = &s
		default:
			http.Error(w, "invalid status filter", http.StatusBadRequest)
			return
		}
	}
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	requests, err := h.repo.ListBookingRequests(r.Context(), status, limit, offset)
	if err != nil {
		h.writeError(w, r, err, "failed to list booking requests")
		return
	}
	if requests == nil {
		requests = []*BookingRequest{}
	}
	writeJSON(w, http.StatusOK, ListBookingRequestsResponse{Requests: requests, Count: len(requests)})
}

type confirmPayload struct {
	StartTime time.Time `json:"start_time"`
}

// ConfirmBooking handles POST /admin/bookings/{bookingID}/confirm.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var payload confirmPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	appointment, err := h.engine.Confirm(r.Context(), id, payload.StartTime)
	if err != nil {
		h.writeError(w, r, err, "failed to confirm booking")
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

type postponePayload struct {
	SuggestedDate   string `json:"suggested_date"`
	SuggestedPeriod string `json:"suggested_period"`
	StaffNotes      string `json:"staff_notes"`
}

// PostponeBooking handles POST /admin/bookings/{bookingID}/postpone.
func (h *Handler) PostponeBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var payload postponePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var postponement Postponement
	if payload.SuggestedDate != "" {
		date, err := time.Parse(dateLayout, payload.SuggestedDate)
		if err != nil {
			http.Error(w, "suggested_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		postponement.SuggestedDate = &date
	}
	if payload.SuggestedPeriod != "" {
		period := Period(payload.SuggestedPeriod)
		postponement.SuggestedPeriod = &period
	}
	if payload.StaffNotes != "" {
		postponement.StaffNotes = &payload.StaffNotes
	}

	request, err := h.engine.Postpone(r.Context(), id, postponement)
	if err != nil {
		h.writeError(w, r, err, "failed to postpone booking")
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// CancelBooking handles POST /admin/bookings/{bookingID}/cancel.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Cancel(r.Context(), id); err != nil {
		h.writeError(w, r, err, "failed to cancel booking")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DayScheduleResponse is the payload for GET /admin/appointments.
type DayScheduleResponse struct {
	Date         string         `json:"date"`
	Appointments []*Appointment `json:"appointments"`
	Count        int            `json:"count"`
}

// DaySchedule handles GET /admin/appointments?date=YYYY-MM-DD.
func (h *Handler) DaySchedule(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		http.Error(w, "date query parameter is required", http.StatusBadRequest)
		return
	}
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	appointments, err := h.engine.DaySchedule(r.Context(), day)
	if err != nil {
		h.writeError(w, r, err, "failed to load day schedule")
		return
	}
	if appointments == nil {
		appointments = []*Appointment{}
	}
	writeJSON(w, http.StatusOK, DayScheduleResponse{Date: raw, Appointments: appointments, Count: len(appointments)})
}

// CompleteAppointment handles POST /admin/appointments/{appointmentID}/complete.
func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	h.dispose(w, r, h.engine.MarkCompleted)
}

// NoShowAppointment handles POST /admin/appointments/{appointmentID}/no-show.
func (h *Handler) NoShowAppointment(w http.ResponseWriter, r *http.Request) {
	h.dispose(w, r, h.engine.MarkNoShow)
}

func (h *Handler) dispose(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id uuid.UUID) (*Appointment, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	appointment, err := action(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to dispose appointment")
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

func (h *Handler) bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain failures to HTTP statuses: validation issues to
// 400, unknown entities to 404, rejected transitions and guardian
// integrity conflicts to 409, everything else to 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var guardianErr *identity.GuardianConstraintError
	switch {
	case errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrMissingService),
		errors.Is(err, ErrMissingRequestedDate),
		errors.Is(err, ErrMissingStartTime),
		errors.Is(err, identity.ErrInvalidPhone),
		errors.Is(err, identity.ErrInvalidName),
		errors.Is(err, identity.ErrInvalidPatientType),
		errors.Is(err, identity.ErrMissingGuardian):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrAppointmentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &guardianErr):
		http.Error(w, "a child patient must be linked to a guardian; the record was rejected by the store", http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error(fallback, "error", err, "path", r.URL.Path)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
