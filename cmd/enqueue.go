package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newEnqueueCmd(app *App) *cobra.Command {
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "enqueue <command|json>",
		Short: "Add a new job to the queue",
		Long: `Add a new job to the queue.

The argument is either the shell command to run, or (when it starts
with '{') a JSON object with a required "command" field and an
optional "max_retries" field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			command := args[0]
			retries := app.Config.MaxRetries
			if cmd.Flags().Changed("max-retries") {
				retries = maxRetries
			}

			if strings.HasPrefix(strings.TrimSpace(command), "{") {
				var spec struct {
					Command    string `json:"command"`
					MaxRetries *int   `json:"max_retries"`
				}
				if err := json.Unmarshal([]byte(command), &spec); err != nil {
					return fmt.Errorf("invalid job JSON: %w", err)
				}
				if spec.Command == "" {
					return errors.New("JSON job specification must contain a 'command' field")
				}
				command = spec.Command
				if spec.MaxRetries != nil && !cmd.Flags().Changed("max-retries") {
					retries = *spec.MaxRetries
				}
			}

			job, err := app.Queue.Enqueue(command, retries)
			if err != nil {
				return err
			}

			fmt.Println("Job enqueued:")
			fmt.Printf("  id:          %s\n", job.ID)
			fmt.Printf("  command:     %s\n", job.Command)
			fmt.Printf("  max_retries: %d\n", job.MaxRetries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxRetries, "max-retries", "r", 0, "Maximum number of retries (overrides config default)")
	return cmd
}
