package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLogsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Print the recorded execution attempts for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := app.openJobLog()
			if err != nil {
				return err
			}
			defer logs.Close()

			entries, err := logs.ForJob(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No recorded attempts for this job.")
				return nil
			}

			for _, e := range entries {
				outcome := "ok"
				if !e.Success {
					outcome = "failed: " + e.Message
				}
				fmt.Printf("%s  attempt %d  (%s)  %s\n",
					e.StartedAt.Format(time.RFC3339),
					e.Attempt,
					e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond),
					outcome)
				if e.Output != "" {
					fmt.Printf("    %s\n", e.Output)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 200, "Max attempts to show")
	return cmd
}
