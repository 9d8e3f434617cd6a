package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floorsync/server/internal/plansync"
)

var planDryRun bool

var errHeaderMismatch = errors.New("one or more datasets failed validation")

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage production plan datasets",
}

var planSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy plan CSVs from the master directory into the plan data directory",
	Long: `Copy the production plan and standard time CSVs from SERVER_MASTER_DIR
(or its plan/ subdirectory) into PLAN_DATA_DIR. Files whose header does not
match the dataset definition are not copied and the command exits 1.

Examples:
  floorsync plan sync             # Copy validated datasets
  floorsync plan sync --dry-run   # Show what would be copied`,
	Args: cobra.NoArgs,
	RunE: runPlanSync,
}

func init() {
	planSyncCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "validate and report without copying")
	planCmd.AddCommand(planSyncCmd)
}

func runPlanSync(cmd *cobra.Command, args []string) error {
	defs, err := loadDefinitions(cfg)
	if err != nil {
		return err
	}

	s := &plansync.Syncer{
		SourceDir: cfg.MasterDir,
		TargetDir: cfg.PlanDataDir,
		Defs:      defs,
		DryRun:    planDryRun,
		Logger:    logger,
	}
	report := s.Run()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if report.Failed() {
		return errHeaderMismatch
	}
	return nil
}
