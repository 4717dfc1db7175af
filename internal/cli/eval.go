package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhartmann/scribeq/internal/pipeline"
	"github.com/lhartmann/scribeq/internal/quality"
)

var evalReference string

var evalCmd = &cobra.Command{
	Use:   "eval <job-id>",
	Short: "Score a completed job against reference text",
	Long: `Compute character and word error rates for a completed job's transcript
against a reference text file, plus segment duration compliance.

Example:
  scribeq eval --reference transcript.txt 7c9e6679-7425-40de-944b-e07fc1f90ae7`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalReference, "reference", "r", "", "reference transcript file (required)")
	_ = evalCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(evalReference)
	if err != nil {
		return fmt.Errorf("read reference: %w", err)
	}
	reference := strings.TrimSpace(string(raw))

	result, err := apiClient.GetResult(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get result: %w", err)
	}

	params := pipeline.DefaultParams()
	report := quality.Evaluate(reference, result.Segments,
		params.MergeMinSeconds, params.SplitMaxSeconds)

	fmt.Printf("Segments:           %d\n", len(result.Segments))
	fmt.Printf("CER:                %.2f%%\n", report.CER*100)
	fmt.Printf("WER:                %.2f%%\n", report.WER*100)
	fmt.Printf("Segment compliance: %.2f%%\n", report.SegmentCompliance*100)
	return nil
}
