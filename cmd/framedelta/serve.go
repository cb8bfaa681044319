package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/framedelta/internal/config"
	"github.com/cwbudde/framedelta/internal/server"
	"github.com/cwbudde/framedelta/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveConfig  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis job server",
	Long: `Serves the analysis engine over HTTP: job creation and lifecycle under
/api/v1/jobs, live progress via SSE, Prometheus metrics on /metrics, and
reports persisted under the data directory.`,
	RunE: runServe,
}

func init() {
	defaults := config.Default().Server

	serveCmd.Flags().StringVar(&serveAddr, "addr", defaults.Addr, "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", defaults.DataDir, "Base directory for persisted reports")
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "YAML config file (flags take precedence)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveConfig != "" {
		cfg, err := config.Load(serveConfig)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("addr") {
			serveAddr = cfg.Server.Addr
		}
		if !cmd.Flags().Changed("data-dir") {
			serveDataDir = cfg.Server.DataDir
		}
	}

	reportStore, err := store.NewFSStore(serveDataDir)
	if err != nil {
		return err
	}

	srv := server.NewServer(serveAddr, serveDataDir, reportStore)

	// Shut down cleanly on SIGINT/SIGTERM.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		slog.Info("Signal received, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
