package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"logcheck/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve runs and start new ones over HTTP",
		Long: `Serve exposes the stored runs and their screenshots:

  GET  /health
  GET  /v1/runs
  POST /v1/runs            {"url": "...", "label": "...", "engine": "...", "headless": true}
  GET  /v1/runs/{id}
  GET  /v1/runs/{id}/logs
  GET  /runs/{id}/artifacts/{file}`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().IntP("port", "p", 8787, "Port to listen on")
	cmd.Flags().StringP("workspace", "w", ".", "Directory holding runs/")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workspace") {
		cfg.Workspace, _ = cmd.Flags().GetString("workspace")
	}
	port, _ := cmd.Flags().GetInt("port")
	logger := newConsoleLogger(cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.New(cfg, nil, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("workspace", cfg.Workspace).Msg("logcheck serve listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
