// Command verify-log-viewer is the fixed smoke check for the log viewer on port 5006.
// It takes no flags: it waits for "Logs", captures the page, clicks the first button and
// captures again into jules-scratch/verification. The two screenshots are the only files
// it leaves behind.
package main

import (
	"context"
	"os"

	"github.com/phuslu/log"

	"logcheck/internal/config"
	"logcheck/internal/runner"
)

func main() {
	console := &log.ConsoleWriter{Writer: os.Stderr}
	logger := log.Logger{Level: log.InfoLevel, Writer: console}

	cfg := config.Default()

	res, err := runner.Run(context.Background(), runner.Options{Config: cfg, Console: console, Discard: true})
	if err != nil {
		logger.Fatal().Err(err).Str("run_id", res.RunID).Msg("log viewer verification failed")
	}
	for _, path := range res.Screenshots {
		logger.Info().Str("path", path).Msg("wrote screenshot")
	}
}
