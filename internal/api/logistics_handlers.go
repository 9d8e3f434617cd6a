package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/floorsync/server/internal/job"
	"github.com/floorsync/server/internal/logistics"
)

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := logistics.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}

	jobs, err := h.svc.Logistics.List(r.Context(), limit)
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": jobs})
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if code := req.check(); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	j, err := h.svc.Logistics.Create(r.Context(), logistics.CreateInput{
		JobID:        req.JobID.Value,
		PartCode:     req.PartCode.Value,
		FromLocation: req.FromLocation.Value,
		ToLocation:   req.ToLocation.Value,
		Status:       job.Status(req.Status.Value),
		RequestedAt:  req.RequestedAt.Time,
	})
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *Handlers) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if code := req.check(); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	j, err := h.svc.Logistics.UpdateStatus(r.Context(), chi.URLParam(r, "id"), logistics.StatusInput{
		Status:       job.Status(req.Status.Value),
		FromLocation: req.FromLocation.Value,
		ToLocation:   req.ToLocation.Value,
	})
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// writeJobError maps service errors onto status codes.
func (h *Handlers) writeJobError(w http.ResponseWriter, err error) {
	var verr *logistics.ValidationError
	var conflict *job.ConflictError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Code)
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":     "invalid_transition",
			"current":   string(conflict.Current),
			"requested": string(conflict.Requested),
		})
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, "job_not_found")
	case errors.Is(err, job.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status")
	case errors.Is(err, job.ErrUnavailable):
		h.logger.Warn("logistics store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "logistics_unavailable")
	default:
		h.logger.Error("logistics operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "logistics_error")
	}
}
