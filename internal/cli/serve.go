package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/floorsync/server/internal/api"
	"github.com/floorsync/server/internal/audit"
	"github.com/floorsync/server/internal/dataset"
	"github.com/floorsync/server/internal/db"
	"github.com/floorsync/server/internal/documents"
	"github.com/floorsync/server/internal/logistics"
	"github.com/floorsync/server/internal/scan"
	"github.com/floorsync/server/internal/station"
	"github.com/floorsync/server/internal/viewer"
	"github.com/floorsync/server/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("starting floorsync", "node_id", cfg.NodeID, "addr", cfg.Addr())

	defs, err := loadDefinitions(cfg)
	if err != nil {
		return err
	}

	kv, err := db.NewStore(cfg.KVDataDir)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer kv.Close()

	docs, err := documents.NewStore(cfg.DocumentsDir)
	if err != nil {
		return fmt.Errorf("open documents: %w", err)
	}

	recorder := audit.Open(cfg.LogisticsAuditPath, logger.Handler())
	defer recorder.Close()

	hub := ws.NewHub(viewer.NewManager(logger), cfg.WSOrigins, logger)
	jobs := newJobStore(cfg)
	plans := dataset.NewCache(cfg.PlanDataDir, defs)

	router := api.NewRouter(cfg, api.Services{
		Logistics: logistics.NewService(jobs, recorder, hub, logger),
		Plans:     plans,
		Scans:     scan.NewService(kv, hub, logger),
		Station:   station.NewStore(kv, logger),
		KV:        kv,
		Documents: docs,
		Hub:       hub,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
