package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/floorsync/server/internal/config"
	"github.com/floorsync/server/internal/dataset"
	"github.com/floorsync/server/internal/db"
	"github.com/floorsync/server/internal/documents"
	"github.com/floorsync/server/internal/logistics"
	"github.com/floorsync/server/internal/scan"
	"github.com/floorsync/server/internal/station"
	"github.com/floorsync/server/internal/ws"
)

// Services are the components the router exposes. Nil members disable their
// routes.
type Services struct {
	Logistics *logistics.Service
	Plans     *dataset.Cache
	Scans     *scan.Service
	Station   *station.Store
	KV        *db.Store
	Documents *documents.Store
	Hub       *ws.Hub
}

func NewRouter(cfg *config.Config, svc Services, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := NewHandlers(cfg, svc, logger)

	// Health & Info
	r.Get("/healthz", h.Health)
	r.Get("/info", h.Info)
	r.Get("/stats", h.Stats)

	r.Group(func(r chi.Router) {
		r.Use(requireToken(cfg.APIToken))

		// Scans & part locations
		if svc.Scans != nil {
			r.Post("/api/v1/scans", h.CreateScan)
			r.Get("/api/v1/part-locations", h.ListPartLocations)
		}

		// Plan datasets
		if svc.Plans != nil {
			r.Get("/api/v1/production-plan", h.datasetHandler(dataset.ProductionPlan))
			r.Get("/api/v1/standard-times", h.datasetHandler(dataset.StandardTimes))
			r.Get("/api/v1/datasets/{key}", h.GetDataset)
			r.Post("/internal/plan-cache/refresh", h.RefreshPlanCache)
		}

		// Station config
		if svc.Station != nil {
			r.Get("/api/v1/station-config", h.GetStationConfig)
			r.Post("/api/v1/station-config", h.SaveStationConfig)
		}

		// Logistics jobs
		if svc.Logistics != nil {
			r.Get("/api/logistics/jobs", h.ListJobs)
			r.Post("/api/logistics/jobs", h.CreateJob)
			r.Post("/api/logistics/jobs/{id}/status", h.UpdateJobStatus)
		}
	})

	// Documents
	if svc.Documents != nil {
		docs := documents.NewHandlers(svc.Documents, logger)
		r.Group(func(r chi.Router) {
			r.Use(allowCORS)
			r.Options("/api/documents/*", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			r.With(requireToken(cfg.APIToken)).Get("/api/documents", docs.List)
			r.With(requireToken(cfg.APIToken)).Get("/api/documents/*", docs.Lookup)
			r.Get("/documents/*", docs.Serve)
		})
	}

	// WebSocket
	if svc.Hub != nil {
		r.Get("/ws", svc.Hub.HandleViewer)
	}

	return r
}
