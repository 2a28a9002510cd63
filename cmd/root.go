package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shivensaigal/QueueCtl/internal/config"
	"github.com/shivensaigal/QueueCtl/internal/dlq"
	"github.com/shivensaigal/QueueCtl/internal/joblog"
	"github.com/shivensaigal/QueueCtl/internal/queue"
	"github.com/shivensaigal/QueueCtl/internal/store"
)

// App is the explicitly constructed application context threaded
// through the commands; there are no package-level singletons. The
// store-backed components are opened lazily so config-only commands
// never touch the data file.
type App struct {
	configPath string
	dataPath   string
	verbose    bool

	Config *config.Config
	Store  *store.Store
	Queue  *queue.Queue
	DLQ    *dlq.Manager
	Logger *slog.Logger
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	root := &cobra.Command{
		Use:          "queuectl",
		Short:        "A CLI based background job queue system.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
	}

	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Configuration file path (default config.json)")
	root.PersistentFlags().StringVarP(&app.dataPath, "data", "d", "", "Data file path (overrides config)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(
		newEnqueueCmd(app),
		newWorkerCmd(app),
		newStatusCmd(app),
		newListCmd(app),
		newDLQCmd(app),
		newConfigCmd(app),
		newLogsCmd(app),
	)
	return root
}

func (a *App) init() error {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.Logger)

	if a.configPath == "" {
		a.configPath = getenv("QUEUECTL_CONFIG", config.DefaultFile)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataPath == "" {
		a.dataPath = os.Getenv("QUEUECTL_DATA")
	}
	if a.dataPath != "" {
		cfg.DataFile = a.dataPath
	}
	a.Config = cfg
	return nil
}

// openQueue opens the store-backed components on first use.
func (a *App) openQueue() error {
	if a.Queue != nil {
		return nil
	}
	st, err := store.Open(a.Config.DataFile)
	if err != nil {
		return err
	}
	a.Store = st
	a.Queue = queue.New(st, a.Config, a.Logger)
	a.DLQ = dlq.NewManager(st, a.Queue, a.Logger)
	return nil
}

func (a *App) openJobLog() (*joblog.Log, error) {
	return joblog.Open(a.jobLogPath())
}

func (a *App) jobLogPath() string {
	return filepath.Join(filepath.Dir(a.Config.DataFile), "joblogs.db")
}

func (a *App) dataDir() string {
	return filepath.Dir(a.Config.DataFile)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
