package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"guestcharge/config"
	"guestcharge/utils"
)

type globalFlags struct {
	ConfigPath string
	LogLevel   string
}

var globals = &globalFlags{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guestcharge",
	Short: "Guest EV charging web front end",
	Long: `Serves the pages a guest reaches by scanning the QR code on a charge point:
payment authorization, the live charging session and the invoice download.

Subcommands:
  serve           Run the HTTP server
  qr              Write the QR code PNG for a connector
  webhook         Register the payment provider webhook endpoint
  hash-password   Print a bcrypt hash for the operator password`,
	SilenceUsage: true,
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute() error {
	rootCmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "Path to the YAML configuration file (defaults to $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&globals.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newQRCommand())
	rootCmd.AddCommand(newWebhookCommand())
	rootCmd.AddCommand(newHashPasswordCommand())

	return rootCmd.Execute()
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(globals.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if globals.LogLevel != "" {
		level = globals.LogLevel
	}
	logger, err := utils.NewLogger(level)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	utils.SetLogger(logger)
	return cfg, nil
}
