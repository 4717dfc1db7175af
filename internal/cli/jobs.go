package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List transcription jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	jobs, err := apiClient.ListJobs(context.Background())
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	// Newest first.
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	fmt.Printf("%-36s %-12s %-9s %-28s %s\n", "ID", "STATUS", "PROGRESS", "MESSAGE", "CREATED")
	fmt.Println("--------------------------------------------------------------------------------------------------")
	for _, job := range jobs {
		fmt.Printf("%-36s %-12s %8d%% %-28s %s\n",
			job.JobID, job.Status, job.Progress,
			truncateText(job.Message, 28),
			job.CreatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
