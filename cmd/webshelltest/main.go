// Package main provides the webshelltest CLI application for end-to-end
// testing of webshell. It records, runs and verifies scripts against golden
// transcripts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webshell/cmd/webshelltest/internal/golden"
	"webshell/internal/version"
)

func main() {
	if err := newRootCommand(golden.NewConfig(), nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. A nil executor runs the webshell binary.
func newRootCommand(config *golden.Config, execute golden.ScriptExecutor) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "webshelltest",
		Short: "End-to-end testing tool for webshell",
		Long: `webshelltest runs webshell scripts from the test directory and compares
their transcripts with golden files. It can record, run and diff test cases.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&config.TestDir, "test-dir", golden.DefaultTestDir, "Test directory")
	rootCmd.PersistentFlags().StringVar(&config.WebshellCmd, "webshell-cmd", golden.DefaultWebshellCmd, "webshell command to test (will try ./bin/webshell, then PATH)")
	rootCmd.PersistentFlags().IntVar(&config.TestTimeout, "timeout", golden.DefaultTestTimeout, "Test timeout in seconds")

	runner := func(cmd *cobra.Command) *golden.Runner {
		return golden.NewRunner(config, execute, cmd.OutOrStdout())
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "record <testname>",
			Short: "Record a new test case",
			Long: `Record a new test case by running a .js script and capturing its transcript.
The transcript is saved as a golden file for future comparisons.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runner(cmd).RecordTest(args[0])
			},
		},
		&cobra.Command{
			Use:   "accept <testname>",
			Short: "Accept current output as golden",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runner(cmd).RecordTest(args[0])
			},
		},
		&cobra.Command{
			Use:   "run <testname>",
			Short: "Run a specific test case",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runner(cmd).RunTest(args[0])
			},
		},
		&cobra.Command{
			Use:   "run-all",
			Short: "Run all test cases",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runner(cmd).RunAllTests()
			},
		},
		&cobra.Command{
			Use:   "diff <testname>",
			Short: "Show differences between expected and actual output",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runner(cmd).ShowDiff(args[0])
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "webshelltest %s\n", version.GetFormattedVersion())
			},
		},
	)
	return rootCmd
}
