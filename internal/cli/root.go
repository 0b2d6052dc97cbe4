// Package cli implements the sqlscan command line: scan, history and
// version.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const disclaimer = "[!] Legal disclaimer: Usage of sqlscan for attacking targets without prior mutual consent is illegal."

// NewRootCmd builds the command tree. Each call returns fresh commands and
// flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlscan",
		Short: "Crawling SQL injection scanner",
		Long: `sqlscan - Crawling SQL injection scanner

Crawls a web application from a start URL, discovers query, form and cookie
parameters, and tests each one with error-based, boolean-blind, time-based
and UNION-based probes.

WARNING: Use this tool only against systems you have explicit permission to test.
Unauthorized access to computer systems is illegal.`,
		SilenceUsage: true,
	}
	root.AddCommand(newScanCmd(), newHistoryCmd(), newVersionCmd())
	return root
}

// Execute runs the command line with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlscan %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
