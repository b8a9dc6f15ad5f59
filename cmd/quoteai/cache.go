package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the suggestion cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics and estimated savings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := openAdminStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Backend:     %s\n", cfg.Store.Backend)
			fmt.Printf("Entries:     %d\n", stats.Entries)
			fmt.Printf("Total uses:  %d\n", stats.TotalUses)
			fmt.Printf("Reused:      %d\n", stats.Reused())
			fmt.Printf("Reuse rate:  %.1f%%\n", stats.ReuseRate())
			fmt.Printf("Savings:     $%.4f (at $%.4f per call)\n", stats.Savings(cfg.Cache.CostPerCall), cfg.Cache.CostPerCall)
			return nil
		},
	}

	var limit int
	topCmd := &cobra.Command{
		Use:   "top",
		Short: "List the most reused suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := openAdminStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.TopByUsage(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USES\tLAST USED\tTYPE\tPAGES\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					e.UseCount, e.LastUsedAt.Local().Format("2006-01-02T15:04:05"), e.ProjectType, len(e.PageList), truncate(e.SourceText, 60))
			}
			return w.Flush()
		},
	}
	topCmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show")

	var (
		days int
		all  bool
		yes  bool
	)
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete unused or all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			age := cfg.Cache.PurgeAfter
			if days > 0 {
				age = time.Duration(days) * 24 * time.Hour
			}
			if !yes {
				if all {
					return errors.New("refusing to delete every cache entry without --yes")
				}
				return fmt.Errorf("refusing to delete entries unused for %s without --yes", age)
			}

			store, err := openAdminStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := context.Background()
			if all {
				n, err := store.PurgeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d cache entries.\n", n)
				return nil
			}
			n, err := store.PurgeOlderThan(ctx, age)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d cache entries unused for %s.\n", n, age)
			return nil
		},
	}
	purgeCmd.Flags().IntVar(&days, "days", 0, "delete entries unused for this many days (default cache.purge_after)")
	purgeCmd.Flags().BoolVar(&all, "all", false, "delete every entry")
	purgeCmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	cmd.AddCommand(statsCmd, topCmd, purgeCmd)
	return cmd
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
