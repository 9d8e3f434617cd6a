package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/floorsync/server/internal/scan"
)

func (h *Handlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if code := req.check(); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	in := scan.Input{
		PartCode:     req.PartCode.Value,
		LocationCode: req.LocationCode.Value,
		ScanID:       req.ScanID.Value,
		DeviceID:     req.DeviceID.Value,
	}
	if s, ok := req.ScannedAt.(string); !ok || s != "" {
		in.ScannedAt = req.ScannedAt
	}

	receipt, err := h.svc.Scans.Record(in)
	switch {
	case errors.Is(err, scan.ErrMissingPartOrLocation), errors.Is(err, scan.ErrInvalidScannedAt):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("scan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "scan_failed")
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handlers) ListPartLocations(w http.ResponseWriter, r *http.Request) {
	limit := scan.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}

	entries, err := h.svc.Scans.List(limit)
	if err != nil {
		h.logger.Error("list part locations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "part_locations_unavailable")
		return
	}
	if entries == nil {
		entries = []scan.PartLocation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
