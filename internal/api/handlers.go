package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/floorsync/server/internal/config"
	"github.com/floorsync/server/internal/stamp"
)

var startTime = time.Now()

type Handlers struct {
	cfg    *config.Config
	svc    Services
	logger *slog.Logger
}

func NewHandlers(cfg *config.Config, svc Services, logger *slog.Logger) *Handlers {
	return &Handlers{cfg: cfg, svc: svc, logger: logger}
}

// Health reports whether the key-value store is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.svc.KV != nil {
		if err := h.svc.KV.Ping(); err != nil {
			h.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":        h.cfg.NodeID,
		"version":        "0.1.0",
		"uptime_seconds": int(time.Since(startTime).Seconds()),
	})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"node_id":        h.cfg.NodeID,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
	}
	if h.svc.Hub != nil {
		resp["viewers"] = h.svc.Hub.Viewers().Stats()
	}
	if h.svc.Plans != nil {
		resp["plan_cache"] = map[string]any{
			"datasets":  h.svc.Plans.Keys(),
			"loaded_at": stamp.FormatPtr(h.svc.Plans.LoadedAt()),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
