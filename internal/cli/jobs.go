package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/job"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job_id]",
	Short: "Show processing history",
	Long: `List recent caption, effect and compose jobs, or show one job in full.

Jobs run from the command line and through the HTTP API share one history
database in the data directory.

Examples:
  captionator jobs
  captionator jobs --limit 5
  captionator jobs 3f2c9a1e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().IntP("limit", "n", 20, "Number of jobs to list (0 for all)")
}

func runJobs(cmd *cobra.Command, args []string) error {
	store, err := job.Open(cfg.JobDBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		j, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(j, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode job: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	jobs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs recorded yet")
		return nil
	}
	fmt.Println(jobTable(jobs))
	return nil
}

func jobTable(jobs []*job.Job) string {
	rows := make([][]string, len(jobs))
	for i, j := range jobs {
		rows[i] = []string{
			j.ID,
			string(j.Type),
			string(j.Status),
			truncate(j.Input, 40),
			j.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			formatElapsed(j.Elapsed()),
			truncate(j.Error, 60),
		}
	}
	return renderTable(
		[]string{"ID", "Type", "Status", "Input", "Created", "Elapsed", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
