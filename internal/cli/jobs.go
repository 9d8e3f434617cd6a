package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floorsync/server/internal/job"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect persisted logistics jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print logistics jobs as JSON, most recently updated first",
	Long: `Print the logistics jobs from LOGISTICS_DATA_PATH. The store lock is
taken as for any server request, so this is safe while the server runs.

Examples:
  floorsync jobs list            # All jobs
  floorsync jobs list --limit 5  # The five most recent`,
	Args: cobra.NoArgs,
	RunE: runJobsList,
}

func init() {
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 0, "maximum number of jobs (0 = all)")
	jobsCmd.AddCommand(jobsListCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	jobs, err := newJobStore(cfg).List(cmd.Context(), jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []job.Job{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(jobs)
}
