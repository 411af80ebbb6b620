// Package cmd implements the nagopanel command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linanwx/nagopanel/config"
	"github.com/linanwx/nagopanel/logger"
)

var configDirFlag string

var rootCmd = &cobra.Command{
	Use:   "nagopanel",
	Short: "Assistant panel for editor webviews",
	Long: `nagopanel renders an assistant's Markdown responses for an editor webview.

The host (an editor extension) pushes responses over stdio or a websocket;
nagopanel renders them, serves the browser shell that displays them and
reports prompt submissions and code selections back to the host.`,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Config directory (default ~/.nagopanel)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initRuntime applies --config-dir and starts logging. A broken config file
// still lets commands like onboard run; they report the error themselves.
func initRuntime(_ *cobra.Command, _ []string) error {
	config.SetConfigDir(configDirFlag)

	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.LoggerConfig(), dir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	return nil
}
