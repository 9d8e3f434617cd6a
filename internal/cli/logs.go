package cli

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/floorsync/server/internal/logrotate"
	"github.com/floorsync/server/internal/mirror"
)

var logsRetentionDays int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Maintain server log files",
}

var logsRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Gzip the audit, application and mirror logs and prune old archives",
	Long: `Compress LOGISTICS_AUDIT_PATH, LOG_FILE and the mirror diff log into
<name>-YYYYMMDDHHMMSS.log.gz next to each file, truncate the originals and
delete archives older than LOG_RETENTION_DAYS. Safe while the server runs.

Examples:
  floorsync logs rotate                      # Use LOG_RETENTION_DAYS
  floorsync logs rotate --retention-days 7   # Keep one week of archives`,
	Args: cobra.NoArgs,
	RunE: runLogsRotate,
}

func init() {
	logsRotateCmd.Flags().IntVar(&logsRetentionDays, "retention-days", 0, "archive retention in days (0 = LOG_RETENTION_DAYS)")
	logsCmd.AddCommand(logsRotateCmd)
}

func runLogsRotate(cmd *cobra.Command, args []string) error {
	retention := cfg.LogRetention
	if logsRetentionDays > 0 {
		retention = time.Duration(logsRetentionDays) * 24 * time.Hour
	}

	report, err := logrotate.Rotate([]string{
		cfg.LogisticsAuditPath,
		cfg.LogFile,
		filepath.Join(cfg.LogDir, mirror.DiffLogName),
	}, logrotate.Options{Retention: retention, Logger: logger})

	if encErr := writeIndented(cmd, report); encErr != nil && err == nil {
		err = encErr
	}
	return err
}
