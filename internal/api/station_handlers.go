package api

import (
	"errors"
	"net/http"

	"github.com/floorsync/server/internal/station"
)

func (h *Handlers) GetStationConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Station.Get())
}

func (h *Handlers) SaveStationConfig(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	saved, err := h.svc.Station.Save(req.Process, req.Available)
	switch {
	case errors.Is(err, station.ErrInvalidProcess), errors.Is(err, station.ErrInvalidAvailable):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("station config save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "station_config_error")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
