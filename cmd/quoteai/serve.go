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
	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/logging"
	"github.com/studioweb/quoteai/pkg/server"
	"github.com/studioweb/quoteai/pkg/suggest"
	"github.com/studioweb/quoteai/pkg/tracer"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the suggestion HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			logger, err := logging.NewLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := tracer.Init(ctx, tracer.Config{
				ServiceName: cfg.Tracing.ServiceName,
				Endpoint:    cfg.Tracing.Endpoint,
				SampleRate:  cfg.Tracing.SampleRate,
				Enabled:     cfg.Tracing.Enabled,
			})
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() {
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutCtx)
			}()

			c, err := build(ctx, cfg, logger)
			if err != nil && !errors.Is(err, suggest.ErrConfiguration) {
				return err
			}
			defer c.Close()

			var analyzer server.Analyzer
			if c.engine != nil {
				analyzer = c.engine
			} else {
				logger.Warn("suggestion engine not configured, /ai/suggest answers 503", zap.Error(err))
			}
			var pinger server.Pinger
			if c.store != nil {
				pinger = c.store
			}

			logger.Info("starting quoteai",
				zap.String("config", *configPath),
				zap.String("store", cfg.Store.Backend),
				zap.String("model", cfg.Model.Name),
			)
			srv := server.New(server.Config{Listen: cfg.Listen}, analyzer, pinger, logger)
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}
