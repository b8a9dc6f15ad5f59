package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/logging"
	"github.com/studioweb/quoteai/pkg/mcp"
	"github.com/studioweb/quoteai/pkg/suggest"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start quoteai as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			// stdout carries the protocol; logs go to stderr.
			logger, err := logging.NewLogger()
			if err != nil {
				logger = zap.NewNop()
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := build(ctx, cfg, logger)
			if err != nil && !errors.Is(err, suggest.ErrConfiguration) {
				return err
			}
			defer c.Close()

			deps := mcp.Deps{CostPerCall: cfg.Cache.CostPerCall}
			if c.engine != nil {
				deps.Analyzer = c.engine
			}
			if c.store != nil {
				deps.Cache = c.store
			}
			if c.tracker != nil {
				deps.Usage = c.tracker
			}
			return mcp.New(deps, version, logger).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
