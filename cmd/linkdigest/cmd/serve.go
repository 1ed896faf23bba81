package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkdigest/linkdigest/internal/mcp"
	"github.com/linkdigest/linkdigest/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server exposing URL analysis as tools.

The server communicates via stdio and provides four tools:
  - analyze_url:    analyze a single URL (optionally bypassing the cache)
  - analyze_urls:   analyze a batch of URLs concurrently
  - cache_status:   report cache occupancy
  - export_results: export cached results as md, json or txt

Example:
  linkdigest serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	// The tool surface is the llmtool mode regardless of the configured
	// message-handling mode.
	cfg.Analysis.Mode = models.ModeLLMTool

	c, err := newComponents(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer c.Close()

	server := mcp.NewServer(mcp.Config{
		Name:            "linkdigest",
		Version:         "1.0.0",
		SendContentType: cfg.Format.SendContentType,
	}, c.orchestrator, c.store)

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
