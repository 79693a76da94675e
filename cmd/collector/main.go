package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ktrace/internal/config"
	"ktrace/internal/logger"
	"ktrace/pkg/logging"
)

var (
	configFile string
	port       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "collector",
		Short: "Reference collector for ktrace event batches",
		Long:  "Collector receives tracker batches on POST /collect and stores them in the configured sink",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (or CONFIG_FILE)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Override collector.server.port")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}
			if port > 0 {
				cfg.Collector.Server.Port = port
			}
			if err := config.ValidateCollector(cfg); err != nil {
				earlyLog.Error("Invalid collector config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting collector", "sink", cfg.Collector.Sink.Type, "port", cfg.Collector.Server.Port)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize collector", "error", err)
				_ = app.Shutdown(context.Background())
				return fmt.Errorf("initialize: %w", err)
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Collector error", "error", err)
				return err
			}
			return nil
		},
	}
}
