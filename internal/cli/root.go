// Package cli provides the command-line interface for scribeq.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lhartmann/scribeq/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string

	// apiClient talks to the daemon. Created in PersistentPreRun so every
	// command sees the --server flag.
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scribeq",
	Short: "Asynchronous media transcription jobs",
	Long: `Scribeq submits media files for transcription and tracks the resulting
jobs. Transcription runs asynchronously in the scribeqd daemon; every
command here talks to its HTTP API.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "daemon base URL (default $SCRIBEQ_SERVER_URL or http://localhost:8080)")
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
