// Package mcp exposes URL analysis as MCP tools. This is the llmtool
// analysis surface: instead of reacting to messages, the pipeline is
// driven by tool calls from a model.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/linkdigest/linkdigest/internal/cache"
	"github.com/linkdigest/linkdigest/internal/export"
	"github.com/linkdigest/linkdigest/internal/pipeline"
	"github.com/linkdigest/linkdigest/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	// SendContentType selects which result fields tool calls deliver:
	// "text" drops screenshot bytes, "image" drops extracted text, and
	// "both" (the default) delivers everything.
	SendContentType string
}

// Server wraps the MCP server around the analysis pipeline.
type Server struct {
	mcpServer       *server.MCPServer
	orchestrator    *pipeline.Orchestrator
	store           cache.Store // nil when caching is disabled
	sendContentType string
}

// NewServer creates an MCP server with the analysis tools registered.
func NewServer(config Config, orchestrator *pipeline.Orchestrator, store cache.Store) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer:       mcpServer,
		orchestrator:    orchestrator,
		store:           store,
		sendContentType: config.SendContentType,
	}

	analyzeTool := mcp.NewTool("analyze_url",
		mcp.WithDescription("Fetch a URL and return its analyzed content: title, extracted text, content type, and a summary when available."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to analyze"),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Bypass the cache and re-analyze (default: false)"),
		),
	)
	mcpServer.AddTool(analyzeTool, s.analyzeHandler)

	batchTool := mcp.NewTool("analyze_urls",
		mcp.WithDescription("Analyze multiple URLs concurrently. Failed items are reported per URL without failing the batch."),
		mcp.WithString("urls",
			mcp.Required(),
			mcp.Description("Whitespace- or comma-separated list of URLs"),
		),
	)
	mcpServer.AddTool(batchTool, s.batchHandler)

	cacheTool := mcp.NewTool("cache_status",
		mcp.WithDescription("Report result cache occupancy: total, valid and expired entries."),
	)
	mcpServer.AddTool(cacheTool, s.cacheStatusHandler)

	exportTool := mcp.NewTool("export_results",
		mcp.WithDescription("Export all cached analysis results in the given format."),
		mcp.WithString("format",
			mcp.Description("Export format: md, json or txt (default: json)"),
		),
	)
	mcpServer.AddTool(exportTool, s.exportHandler)

	return s
}

// analyzeHandler handles the analyze_url tool call.
func (s *Server) analyzeHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	var out pipeline.Outcome
	if req.GetBool("refresh", false) {
		out = s.orchestrator.Refresh(ctx, url)
	} else {
		out = s.orchestrator.ProcessURL(ctx, url)
	}

	if out.Fault != nil {
		return mcp.NewToolResultError(out.Fault.Error()), nil
	}

	result, err := json.Marshal(s.deliverable(out.Result))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// deliverable applies the send_content_type filter to a result copy.
func (s *Server) deliverable(r *models.AnalysisResult) *models.AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	switch s.sendContentType {
	case "text":
		out.Raw.Screenshot = nil
	case "image":
		out.Raw.Content = ""
		out.LLMSummary = ""
	}
	return &out
}

// batchHandler handles the analyze_urls tool call.
func (s *Server) batchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("urls")
	if err != nil {
		return mcp.NewToolResultError("urls parameter is required"), nil
	}

	urls := splitURLList(raw)
	if len(urls) == 0 {
		return mcp.NewToolResultError("no URLs provided"), nil
	}

	outcomes := s.orchestrator.ProcessBatch(ctx, urls)

	type item struct {
		URL    string                 `json:"url"`
		Result *models.AnalysisResult `json:"result,omitempty"`
		Error  string                 `json:"error,omitempty"`
	}
	items := make([]item, len(outcomes))
	for i, out := range outcomes {
		items[i] = item{URL: out.URL, Result: s.deliverable(out.Result)}
		if out.Fault != nil {
			items[i].Error = out.Fault.Error()
		}
	}

	result, err := json.Marshal(items)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// cacheStatusHandler handles the cache_status tool call.
func (s *Server) cacheStatusHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultText(`{"enabled":false}`), nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cache status failed: %v", err)), nil
	}
	result, _ := json.Marshal(map[string]any{
		"enabled": true,
		"total":   stats.Total,
		"valid":   stats.Valid,
		"expired": stats.Expired,
	})
	return mcp.NewToolResultText(string(result)), nil
}

// exportHandler handles the export_results tool call.
func (s *Server) exportHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := export.ParseFormat(req.GetString("format", "json"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("cache is disabled, nothing to export"), nil
	}

	entries, err := s.store.Entries(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	results := make([]models.AnalysisResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.Result)
	}

	data, err := export.Render(results, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func splitURLList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
