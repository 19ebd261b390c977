// Command capture_ui saves one screenshot of the log viewer to artifacts/log-viewer.png.
package main

import (
	"context"
	"os"

	"github.com/phuslu/log"

	"logcheck/internal/config"
	"logcheck/internal/runner"
	"logcheck/internal/scenario"
)

func main() {
	console := &log.ConsoleWriter{Writer: os.Stderr}
	logger := log.Logger{Level: log.InfoLevel, Writer: console}

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	cfg.OutputDir = "artifacts"
	cfg.FullPage = true

	sc := scenario.Capture("log-viewer.png")
	res, err := runner.Run(context.Background(), runner.Options{Config: cfg, Scenario: &sc, Console: console})
	if err != nil {
		logger.Fatal().Err(err).Msg("capture failed")
	}
	logger.Info().Strs("paths", res.Screenshots).Msg("captured web UI screenshot")
}
