package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivensaigal/QueueCtl/internal/worker"
)

// workerStatusFile records the worker process so that `worker stop`
// and `status` in another invocation can find it. Best-effort: a
// crashed pool leaves a stale file behind.
type workerStatusFile struct {
	PID       int    `json:"pid"`
	Count     int    `json:"count"`
	StartedAt string `json:"started_at"`
}

func newWorkerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}
	cmd.AddCommand(newWorkerStartCmd(app), newWorkerStopCmd(app), newWorkerStatusCmd(app))
	return cmd
}

func newWorkerStartCmd(app *App) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start worker processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openQueue(); err != nil {
				return err
			}

			logs, err := app.openJobLog()
			if err != nil {
				app.Logger.Warn("execution log unavailable", "err", err)
				logs = nil
			} else {
				defer logs.Close()
			}

			mgr := worker.NewManager(app.Queue, app.Config, logs, app.Logger)
			if err := mgr.Start(count); err != nil {
				return err
			}

			if err := writeWorkerStatus(app, mgr.WorkerCount()); err != nil {
				app.Logger.Warn("write worker status file failed", "err", err)
			}
			defer clearWorkerStatus(app)

			fmt.Printf("Started %d worker(s). Press Ctrl+C to stop.\n", mgr.WorkerCount())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			fmt.Println("\nShutting down…")
			mgr.Stop()
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of workers to start (default: from config)")
	return cmd
}

func newWorkerStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running worker process",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := readWorkerStatus(app)
			if err != nil {
				fmt.Println("No workers are currently running.")
				return nil
			}

			proc, err := os.FindProcess(status.PID)
			if err == nil {
				err = proc.Signal(syscall.SIGTERM)
			}
			if err != nil {
				clearWorkerStatus(app)
				return fmt.Errorf("stop worker process %d: %w", status.PID, err)
			}

			fmt.Printf("Sent shutdown signal to worker process %d.\n", status.PID)
			return nil
		},
	}
}

func newWorkerStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			printWorkerStatus(app)
			return nil
		},
	}
}

func printWorkerStatus(app *App) {
	status, err := readWorkerStatus(app)
	if err != nil {
		fmt.Println("Workers: 0 (stopped)")
		return
	}

	alive := ""
	if proc, ferr := os.FindProcess(status.PID); ferr != nil || proc.Signal(syscall.Signal(0)) != nil {
		alive = " (stale)"
	}
	fmt.Printf("Workers: %d, pid %d, started at %s%s\n", status.Count, status.PID, status.StartedAt, alive)
}

func workerStatusPath(app *App) string {
	return filepath.Join(app.dataDir(), "worker.status")
}

func writeWorkerStatus(app *App, count int) error {
	status := workerStatusFile{
		PID:       os.Getpid(),
		Count:     count,
		StartedAt: time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	if dir := app.dataDir(); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(workerStatusPath(app), data, 0o644)
}

func readWorkerStatus(app *App) (workerStatusFile, error) {
	var status workerStatusFile
	data, err := os.ReadFile(workerStatusPath(app))
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, err
	}
	return status, nil
}

func clearWorkerStatus(app *App) {
	_ = os.Remove(workerStatusPath(app))
}
