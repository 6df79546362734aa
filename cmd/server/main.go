package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "onlinemon",
		Short: "Online histogram monitor for detector readout",
		Long: `onlinemon registers the monitoring histograms of every detector block,
fills them from decoded events and serves them over HTTP, Prometheus and
periodic snapshots.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(layoutCmd)
}
