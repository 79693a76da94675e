package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile   string
	closeTimeout string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "ktrace",
		Short:        "Record ktrace events from the command line",
		Long:         "ktrace tracks events through the SDK pipeline: events are queued durably and delivered to the configured collector",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (or CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&closeTimeout, "close-timeout", "5s", "How long to wait for delivery before exiting")

	rootCmd.AddCommand(
		trackCmd(),
		pageviewCmd(),
		identifyCmd(),
		errorCmd(),
		queueCmd(),
		flushCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
