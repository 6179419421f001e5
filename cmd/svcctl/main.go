package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edvin/svcctl/internal/report"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Exit codes.
const (
	ExitCodeSuccess = 0
	// ExitCodeError covers usage, configuration and transport problems.
	ExitCodeError = 1
	// ExitCodeFailed means a reconciliation ran and failed; its report has
	// already been printed.
	ExitCodeFailed = 2
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		code := exitCode(err)
		if code != ExitCodeFailed {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}

// failedError marks an error whose report was already written.
type failedError struct {
	err error
}

func (e *failedError) Error() string { return e.err.Error() }
func (e *failedError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var failed *failedError
	if errors.As(err, &failed) {
		return ExitCodeFailed
	}
	return ExitCodeError
}

type rootOptions struct {
	output   string
	logLevel string
}

func (o *rootOptions) format() (report.Format, error) {
	return report.ParseFormat(o.output)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "svcctl",
		Short: "Reconcile cluster services against a cluster manager",
		Long: `svcctl drives services (HDFS, Hive, Impala, Solr) in a managed cluster to a
desired lifecycle state: present, absent, started or stopped.

It observes the service, issues only the control-plane calls needed to reach
the target, waits for every asynchronous command and verifies the result.
Running it again with the same request changes nothing.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf(
		"svcctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json or yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	root.AddCommand(newApplyCmd(opts))
	root.AddCommand(newPlacementCmd(opts))
	root.AddCommand(newServicesCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of svcctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "svcctl version %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}
}
