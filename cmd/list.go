package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shivensaigal/QueueCtl/pkg/models"
)

func newListCmd(app *App) *cobra.Command {
	var (
		stateFlag string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs (optionally by state)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			var jobs []models.Job
			if stateFlag != "" {
				state, err := models.ParseState(stateFlag)
				if err != nil {
					return err
				}
				jobs = app.Store.ListByState(state)
			} else {
				jobs = app.Store.All()
			}

			sort.Slice(jobs, func(i, j int) bool {
				if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt.Time) {
					return jobs[i].CreatedAt.Before(jobs[j].CreatedAt.Time)
				}
				return jobs[i].ID < jobs[j].ID
			})

			if offset > 0 {
				if offset >= len(jobs) {
					jobs = nil
				} else {
					jobs = jobs[offset:]
				}
			}
			if limit > 0 && limit < len(jobs) {
				jobs = jobs[:limit]
			}

			if len(jobs) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}

			for _, j := range jobs {
				fmt.Printf("%s  %-10s  attempts=%d/%d  cmd=%q\n",
					j.ID, j.State, j.Attempts, j.MaxRetries, j.Command)
				if app.verbose {
					if j.ErrorMessage != nil {
						fmt.Printf("    error: %s\n", *j.ErrorMessage)
					}
					if j.NextRetryAt != nil {
						fmt.Printf("    next retry: %s\n", j.NextRetryAt.Format("2006-01-02 15:04:05"))
					}
					fmt.Printf("    created: %s  updated: %s\n",
						j.CreatedAt.Format("2006-01-02 15:04:05"),
						j.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "Filter by state (pending|processing|completed|failed|dead)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}
