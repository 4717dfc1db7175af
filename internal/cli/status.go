package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job's status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Print a completed job's transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runResult,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status record")
	resultCmd.Flags().BoolVar(&statusJSON, "json", false, "print segments as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	job, err := apiClient.GetJob(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(job)
	}

	fmt.Printf("Job: %s\n", job.JobID)
	fmt.Printf("  Status:   %s\n", job.Status)
	fmt.Printf("  Progress: %d%%\n", job.Progress)
	fmt.Printf("  Message:  %s\n", job.Message)
	fmt.Printf("  Model:    %s\n", job.Model)
	fmt.Printf("  Created:  %s\n", job.CreatedAt.Local().Format(time.RFC3339))
	fmt.Printf("  Updated:  %s\n", job.UpdatedAt.Local().Format(time.RFC3339))
	return nil
}

func runResult(cmd *cobra.Command, args []string) error {
	result, err := apiClient.GetResult(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get result: %w", err)
	}

	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	for _, s := range result.Segments {
		fmt.Printf("[%8.2f - %8.2f] %s\n", s.Start, s.End, s.Text)
	}
	return nil
}
