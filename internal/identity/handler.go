package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smiledesk/clinic-platform/pkg/logging"
)

// Handler exposes the staff-facing patient endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListPatientsResponse is the payload for GET /admin/patients.
type ListPatientsResponse struct {
	Patients []*Patient `json:"patients"`
	Count    int        `json:"count"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
}

// ListPatients handles GET /admin/patients.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
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

	patients, err := h.repo.ListPatients(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list patients", "error", err)
		http.Error(w, "failed to list patients", http.StatusInternalServerError)
		return
	}
	if patients == nil {
		patients = []*Patient{}
	}

	writeJSON(w, http.StatusOK, ListPatientsResponse{
		Patients: patients,
		Count:    len(patients),
		Offset:   offset,
		Limit:    limit,
	})
}

// GetPatient handles GET /admin/patients/{patientID}.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	patient, err := h.repo.FindPatientByID(r.Context(), id)
	if errors.Is(err, ErrPatientNotFound) {
		http.Error(w, "patient not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load patient", "error", err, "patient_id", id)
		http.Error(w, "failed to load patient", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, patient)
}

// UpdateContact handles PATCH /admin/patients/{patientID}. Only contact and
// notes fields are editable; identity fields never change after creation.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	var patch ContactPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.FullName == nil && patch.Email == nil && patch.Notes == nil {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	err = h.repo.UpdateContact(r.Context(), id, patch)
	if errors.Is(err, ErrPatientNotFound) {
		http.Error(w, "patient not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to update patient contact", "error", err, "patient_id", id)
		http.Error(w, "failed to update patient", http.StatusInternalServerError)
		return
	}

	h.logger.Info("patient contact updated", "patient_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
