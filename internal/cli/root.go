// Package cli provides the floorsync command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/floorsync/server/internal/config"
	"github.com/floorsync/server/internal/dataset"
	"github.com/floorsync/server/internal/job"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	verbose bool

	cfg         *config.Config
	logger      *slog.Logger
	closeLogger func() error
)

var rootCmd = &cobra.Command{
	Use:   "floorsync",
	Short: "Factory floor coordination server",
	Long: `floorsync tracks part locations from barcode scans, runs logistics
transport jobs through their status lifecycle, serves production plan
datasets and pushes every change to connected dashboards.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose || cfg.Debug {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command. The log file opened for the command is
// closed whether or not the command fails.
func Execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func closeLog() {
	if closeLogger == nil {
		return
	}
	if err := closeLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	closeLogger = nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(mirrorCmd)
}

func loadDefinitions(c *config.Config) ([]dataset.Definition, error) {
	if c.PlanDatasetsFile == "" {
		return dataset.DefaultDefinitions(), nil
	}
	defs, err := dataset.LoadDefinitions(c.PlanDatasetsFile)
	if err != nil {
		return nil, fmt.Errorf("load dataset definitions: %w", err)
	}
	return defs, nil
}

func newJobStore(c *config.Config) *job.Store {
	return job.NewStore(job.Options{
		Path:        c.LogisticsDataPath,
		LockPath:    c.LogisticsLockPath,
		LockTimeout: c.LogisticsLockTimeout,
		MaxJobs:     c.LogisticsMaxJobs,
		Retention:   c.LogisticsRetention,
		Policy:      job.NewPolicy(job.ParseStatuses(c.LogisticsAllowedStatuses)),
	})
}
