package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linkdigest/linkdigest/internal/printer"
)

var analyzeRefresh bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url> [url...]",
	Short: "Analyze one or more URLs",
	Long: `Fetch each URL, extract its content, and print the analysis.
Results are cached; identical URLs within the TTL are served from cache.

Examples:
  linkdigest analyze https://example.com/article
  linkdigest analyze --refresh https://example.com/article
  linkdigest analyze https://a.example.com https://b.example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "refresh", false, "bypass the cache and re-analyze")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := newComponents(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer c.Close()

	var failed int
	if analyzeRefresh {
		for _, url := range args {
			out := c.orchestrator.Refresh(ctx, url)
			printer.Println(out.Presented)
			printer.Println()
			if out.Fault != nil {
				failed++
			}
		}
	} else {
		for _, out := range c.orchestrator.ProcessBatch(ctx, args) {
			printer.Println(out.Presented)
			printer.Println()
			if out.Fault != nil {
				failed++
			}
		}
	}

	if failed > 0 {
		printer.Warning("%d of %d URLs failed\n", failed, len(args))
		return fmt.Errorf("%d of %d URLs failed", failed, len(args))
	}
	printer.Success("%d URLs analyzed\n", len(args))
	return nil
}
