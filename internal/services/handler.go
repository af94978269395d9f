package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smiledesk/clinic-platform/pkg/logging"
)

// Handler exposes the public catalog listing and the staff catalog CRUD.
type Handler struct {
	repo    *Repository
	catalog *Catalog
	logger  *logging.Logger
}

func NewHandler(repo *Repository, catalog *Catalog, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, catalog: catalog, logger: logger}
}

// ListActive handles GET /api/services, the public listing booking forms use.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list active services", "error", err)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": list, "count": len(list)})
}

// ListAll handles GET /admin/services.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list services", "error", err)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": list, "count": len(list)})
}

// Upsert handles PUT /admin/services.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var svc Service
	if err := json.NewDecoder(r.Body).Decode(&svc); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.Upsert(r.Context(), &svc); err != nil {
		if errors.Is(err, ErrInvalidService) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to upsert service", "error", err)
		http.Error(w, "failed to save service", http.StatusInternalServerError)
		return
	}

	h.catalog.Invalidate(r.Context())
	h.logger.Info("service saved", "service_id", svc.ID, "name", svc.Name)
	writeJSON(w, http.StatusOK, svc)
}

// Deactivate handles DELETE /admin/services/{serviceID}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "serviceID")
	if id == "" {
		http.Error(w, "missing service id", http.StatusBadRequest)
		return
	}

	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to deactivate service", "error", err, "service_id", id)
		http.Error(w, "failed to deactivate service", http.StatusInternalServerError)
		return
	}

	h.catalog.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
