package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/floorsync/server/internal/dataset"
	"github.com/floorsync/server/internal/stamp"
)

func (h *Handlers) datasetHandler(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeDataset(w, key)
	}
}

func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	h.writeDataset(w, chi.URLParam(r, "key"))
}

func (h *Handlers) writeDataset(w http.ResponseWriter, key string) {
	d, err := h.svc.Plans.Get(key)
	if errors.Is(err, dataset.ErrUnknownDataset) {
		writeError(w, http.StatusBadRequest, "unknown_dataset")
		return
	}
	if err != nil {
		h.logger.Error("dataset load failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "dataset_error")
		return
	}

	status := http.StatusOK
	if d.Error != nil {
		status = http.StatusNotFound
	}
	writeJSON(w, status, d)
}

func (h *Handlers) RefreshPlanCache(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	summary, err := h.svc.Plans.Refresh(req.Keys...)
	if errors.Is(err, dataset.ErrUnknownDataset) {
		writeError(w, http.StatusBadRequest, "unknown_dataset")
		return
	}
	if err != nil {
		h.logger.Error("plan cache refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "refresh_failed")
		return
	}

	h.logger.Info("plan cache refreshed", "datasets", len(summary))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"refreshed": summary,
		"loaded_at": stamp.FormatPtr(h.svc.Plans.LoadedAt()),
	})
}
