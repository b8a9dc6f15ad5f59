package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/logging"
)

func newAnalyzeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <description>",
		Short: "Analyze one project description and print the envelope as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger()
			if err != nil {
				logger = zap.NewNop()
			}
			defer func() { _ = logger.Sync() }()

			ctx := context.Background()
			c, err := build(ctx, cfg, logger)
			if err != nil {
				if c != nil {
					c.Close()
				}
				return err
			}
			defer c.Close()

			res := c.engine.Analyze(ctx, strings.Join(args, " "))

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
