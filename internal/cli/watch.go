package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/floorsync/server/internal/watch"
	"github.com/floorsync/server/internal/ws"
)

var (
	watchURL    string
	watchEvents []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live events from a running server",
	Long: `Connect to the viewer websocket and print each event as a JSON line.

Examples:
  floorsync watch                                   # Everything from localhost
  floorsync watch --event logistics_job_updated     # Job changes only
  floorsync watch --url ws://floor-server:8501/ws`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "websocket URL (default ws://localhost:<HTTP_PORT>/ws)")
	watchCmd.Flags().StringSliceVar(&watchEvents, "event", nil, "event names to receive (repeatable)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	url := watchURL
	if url == "" {
		url = fmt.Sprintf("ws://localhost:%d/ws", cfg.HTTPPort)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)

	w := watch.New(url, func(msg ws.EventMessage) {
		if err := enc.Encode(msg); err != nil {
			logger.Warn("failed to print event", "error", err)
		}
	}, watch.Options{Events: watchEvents, Logger: logger})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
