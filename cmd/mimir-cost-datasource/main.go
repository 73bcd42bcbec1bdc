package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/finopshq/mimir-cost-datasource/internal/config"
	"github.com/finopshq/mimir-cost-datasource/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mimir-cost-datasource",
		Short: "Cost-analysis data-source plugin for Mimir cluster cost metrics",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML server configuration file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plugin dispatch surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.AddCommand(serve)

	return root
}

func runServe(configPath string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(logger)
	healthSrv := server.NewHealthServer()

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("plugin server listening")
		if err := srv.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := healthSrv.Start(cfg.HealthListen, logger); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	healthSrv.Stop()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parsing log level %q: %w", level, err)
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger(), nil
}
