package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shivensaigal/QueueCtl/pkg/models"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print counts of jobs by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			stats := app.Store.Statistics()
			fmt.Println("Job queue status:")
			for _, state := range models.AllStates {
				fmt.Printf("  %-12s %d\n", state, stats[state])
			}
			fmt.Printf("  %-12s %d\n", "total", app.Store.Count())

			fmt.Println()
			printWorkerStatus(app)
			return nil
		},
	}
}
