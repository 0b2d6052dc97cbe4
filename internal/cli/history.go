package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Varunmathiazhagan/final-project-review/internal/history"
	"github.com/Varunmathiazhagan/final-project-review/internal/report"
)

const defaultHistoryDB = "sqlscan-history.db"

func newHistoryCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and review archived scans",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultHistoryDB, "History database written by scan --history")

	open := func() (*history.SQLiteStore, error) {
		store, err := history.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening history %q: %w", dbPath, err)
		}
		return store, nil
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archived scans.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tPAGES\tFINDINGS\tSTART URL")
			for _, r := range runs {
				status := ""
				if r.Cancelled {
					status = " (cancelled)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d%s\t%s\n",
					r.ID,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.FinishedAt.Sub(r.StartedAt).Round(100*time.Millisecond),
					r.Crawled,
					r.Findings, status,
					r.StartURL,
				)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Show at most this many scans (0 = all)")

	var format, output string
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print the report of an archived scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter, err := report.New(format)
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			sum, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), output, reporter, sum)
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "text", "Report format ("+strings.Join(report.Formats, ", ")+")")
	show.Flags().StringVarP(&output, "output", "o", "", "Write the report to this file instead of stdout")

	del := &cobra.Command{
		Use:   "delete ID...",
		Short: "Remove archived scans",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}
