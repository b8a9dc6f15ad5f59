package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "quoteai",
		Short:        "AI-assisted web project estimation",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "quoteai.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newAnalyzeCmd(&configPath),
		newCacheCmd(&configPath),
		newUsageCmd(&configPath),
		newMCPCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
