package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lhartmann/scribeq/internal/dispatch"
	"github.com/lhartmann/scribeq/internal/pipeline"
)

var (
	submitModel        string
	submitLanguage     string
	submitPipelineFile string
	submitWatch        bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <audio-file>",
	Short: "Submit a media file for transcription",
	Long: `Submit a media file for asynchronous transcription.

Examples:
  scribeq submit call.wav
  scribeq submit --model whisper-large --language ja interview.wav
  scribeq submit --pipeline-file pipeline.yaml --watch podcast.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitModel, "model", "m", "auto", "model family (whisper-fast, whisper-large, auto)")
	submitCmd.Flags().StringVarP(&submitLanguage, "language", "l", "", "language hint, e.g. en or zh-TW")
	submitCmd.Flags().StringVar(&submitPipelineFile, "pipeline-file", "", "YAML enhancement pipeline configuration")
	submitCmd.Flags().BoolVarP(&submitWatch, "watch", "w", false, "follow progress until the job finishes")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	audioPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve audio path: %w", err)
	}

	req := dispatch.Request{
		AudioPath: audioPath,
		Model:     submitModel,
		Language:  submitLanguage,
	}
	if submitPipelineFile != "" {
		cfg, err := pipeline.LoadConfigFile(submitPipelineFile)
		if err != nil {
			return err
		}
		req.Pipeline = &cfg
	}

	receipt, err := apiClient.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	fmt.Printf("Job %s queued on %s\n", receipt.JobID, receipt.Queue)
	if receipt.Reason != "" {
		fmt.Printf("  Routing: %s\n", receipt.Reason)
	}

	if submitWatch {
		return watchJob(receipt.JobID)
	}
	fmt.Printf("Use 'scribeq status %s' to check progress.\n", receipt.JobID)
	return nil
}
