package main

import (
	"fmt"
	"os"

	"taxmate-hq/throttle/pkg/cli"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Per-user request throttle for the tax assistant bot",
	Long: `Throttle keeps chat users of the tax assistant within their request quotas.

Each user has an independent sliding window per request category:
  - text_query: 10 questions per hour
  - document_analysis: 3 document analyses per day

Quotas, garbage collection and telemetry are configured in a YAML file.
Requests in categories without a quota are never limited.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return cli.ExitCode(err)
}

func printError(err error) {
	if fieldErrs := cli.ConfigErrors(err); len(fieldErrs) > 0 {
		fmt.Fprintln(os.Stderr, "Error: invalid configuration")
		for _, fe := range fieldErrs {
			fmt.Fprintf(os.Stderr, "  - %s: %s\n", fe.Field, fe.Message)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
