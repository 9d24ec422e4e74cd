package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"label-platform/internal/config"
	"label-platform/internal/logging"
)

// app is what every subcommand starts from.
type app struct {
	configDir string
	cfg       config.Config
	logger    *zap.Logger
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "label-platform",
		Short:         "Record label site, shop and payment backend",
		// Without a subcommand the server runs.
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(false)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config", ".", "directory holding config.env")

	root.AddCommand(newServeCommand(a), newMigrateCommand(a), newCreateAdminCommand(a))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// load reads the configuration and builds the logger.
func (a *app) load() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("cannot build logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
