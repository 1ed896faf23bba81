package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linkdigest/linkdigest/internal/printer"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := newComponents(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer c.Close()

		if c.store == nil {
			printer.Info("cache is disabled\n")
			return nil
		}
		stats, err := c.store.Stats(ctx)
		if err != nil {
			return err
		}
		printer.Printf("entries: %d total, %d valid, %d expired\n", stats.Total, stats.Valid, stats.Expired)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := newComponents(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer c.Close()

		if c.store == nil {
			printer.Info("cache is disabled\n")
			return nil
		}
		if err := c.store.Clear(ctx); err != nil {
			return err
		}
		printer.Success("cache cleared\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
