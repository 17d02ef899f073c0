package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [container]",
		Short: "Show past import runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			}

			svc, store, err := newService(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if key != "" {
				if _, err := svc.Container(key); err != nil {
					return err
				}
			}

			runs, err := svc.History(cmd.Context(), key, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("RUN", "CONTAINER", "STATE", "RECORDS", "WARNINGS", "FINISHED", "ERROR")
			for _, r := range runs {
				t.Row(
					shortID(r.ID),
					r.Container,
					string(r.State),
					strconv.Itoa(r.Records),
					strconv.Itoa(r.Warnings),
					r.FinishedAt.Local().Format(time.DateTime),
					r.Error,
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.AddCommand(newPruneCmd(root))
	return cmd
}

func newPruneCmd(root *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				days = root.cfg.History.RetentionDays
			}

			svc, store, err := newService(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := svc.PruneHistory(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d runs older than %d days.\n", n, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default: HISTORY_RETENTION_DAYS)")
	return cmd
}
