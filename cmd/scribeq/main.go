// Package main provides the scribeq CLI.
package main

import (
	"os"

	"github.com/lhartmann/scribeq/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
