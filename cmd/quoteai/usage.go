package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/studioweb/quoteai/pkg/tracker"
)

func newUsageCmd(configPath *string) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show model token usage by model and outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()
			from := time.Now().Add(-since)
			summaries, err := tr.Summary(ctx, from)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tOUTCOME\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL\tAVG LATENCY")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					s.Model, s.Outcome, s.RequestCount, s.TotalPrompt, s.TotalCompletion, s.TotalTokens,
					time.Duration(s.AvgLatencyMs)*time.Millisecond)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			total, err := tr.TotalTokens(ctx, from)
			if err != nil {
				return err
			}
			fmt.Printf("\nTotal tokens since %s: %d\n", from.Format("2006-01-02"), total)
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 30*24*time.Hour, "look-back window")
	return cmd
}
