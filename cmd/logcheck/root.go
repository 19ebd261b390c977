package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"logcheck/internal/config"
)

// NewRootCmd creates the root command for logcheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logcheck",
		Short: "Headless browser smoke check for the log viewer",
		Long: `logcheck opens the log viewer in a headless browser, waits for the "Logs" label,
captures a screenshot, clicks the first button and captures a second one.

Every run is stored under runs/<id> with its screenshots, a run.json manifest and a
JSON line log. Settings come from an optional YAML file (--config), a .env file and
LOGCHECK_* environment variables, and finally command line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "YAML config file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the layered config named by --config.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// consoleWriter prints log entries for humans on stderr.
func consoleWriter() log.Writer {
	return &log.ConsoleWriter{
		Writer:      os.Stderr,
		ColorOutput: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

func newConsoleLogger(cfg config.Config) *log.Logger {
	return &log.Logger{
		Level:      log.ParseLevel(cfg.LogLevel),
		TimeFormat: "15:04:05.000",
		Writer:     consoleWriter(),
	}
}
