package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDLQCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead-letter queue",
	}
	cmd.AddCommand(
		newDLQListCmd(app),
		newDLQRetryCmd(app),
		newDLQDeleteCmd(app),
		newDLQClearCmd(app),
		newDLQStatsCmd(app),
	)
	return cmd
}

func newDLQListCmd(app *App) *cobra.Command {
	var (
		offset int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead-letter queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			jobs := app.DLQ.List(offset, limit)
			if len(jobs) == 0 {
				fmt.Println("Dead-letter queue is empty.")
				return nil
			}

			for _, j := range jobs {
				reason := ""
				if j.ErrorMessage != nil {
					reason = *j.ErrorMessage
				}
				fmt.Printf("%s  attempts=%d/%d  died=%s  cmd=%q  err=%q\n",
					j.ID, j.Attempts, j.MaxRetries,
					j.UpdatedAt.Format("2006-01-02 15:04:05"), j.Command, reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max rows")
	return cmd
}

func newDLQRetryCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [job-id…]",
		Short: "Re-enqueue dead jobs as fresh jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			if all {
				count := app.DLQ.RetryAll()
				fmt.Printf("Retried %d dead job(s).\n", count)
				return nil
			}
			if len(args) == 0 {
				return errors.New("specify job ids or --all")
			}
			if len(args) == 1 {
				job, err := app.DLQ.Retry(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Dead job %s retried as new job %s.\n", args[0], job.ID)
				return nil
			}

			count := app.DLQ.RetryMany(args)
			fmt.Printf("Retried %d of %d dead job(s).\n", count, len(args))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Retry every job in the dead-letter queue")
	return cmd
}

func newDLQDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>…",
		Short: "Permanently delete dead jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			count, err := app.DLQ.DeleteMany(args)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d of %d dead job(s).\n", count, len(args))
			return nil
		},
	}
}

func newDLQClearCmd(app *App) *cobra.Command {
	var (
		olderThan int
		confirm   bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Permanently remove dead jobs in bulk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear the dead-letter queue without --confirm")
			}
			if err := app.openQueue(); err != nil {
				return err
			}

			var (
				count int
				err   error
			)
			if cmd.Flags().Changed("older-than") {
				count, err = app.DLQ.ClearOlderThan(olderThan)
			} else {
				count, err = app.DLQ.ClearAll()
			}
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d dead job(s).\n", count)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThan, "older-than", 0, "Only clear jobs dead for more than this many days")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the permanent removal")
	return cmd
}

func newDLQStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dead-letter queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			stats := app.DLQ.Statistics()
			fmt.Println("Dead-letter queue statistics:")
			fmt.Printf("  total:          %d\n", stats.Count)
			fmt.Printf("  timeout errors: %d\n", stats.TimeoutErrors)
			if stats.Oldest != nil {
				fmt.Printf("  oldest:         %s\n", stats.Oldest.Format(time.DateTime))
			}
			if stats.Newest != nil {
				fmt.Printf("  newest:         %s\n", stats.Newest.Format(time.DateTime))
			}
			return nil
		},
	}
}
